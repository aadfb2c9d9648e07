package registry_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"inkwell.app/assistant/internal/registry"
)

var _ = Describe("Registry", func() {
	var reg *registry.Registry

	BeforeEach(func() {
		reg = registry.New()
	})

	It("cancels the registered handle on abort", func() {
		ctx, cancel := context.WithCancel(context.Background())
		Expect(reg.Register(42, cancel)).To(Succeed())

		Expect(reg.Abort(42)).To(BeTrue())
		Expect(ctx.Err()).To(MatchError(context.Canceled))
		Expect(reg.Len()).To(BeZero())
	})

	It("treats abort of an unknown round as a no-op", func() {
		Expect(reg.Abort(99)).To(BeFalse())
	})

	It("treats a second abort as a no-op", func() {
		_, cancel := context.WithCancel(context.Background())
		Expect(reg.Register(42, cancel)).To(Succeed())

		Expect(reg.Abort(42)).To(BeTrue())
		Expect(reg.Abort(42)).To(BeFalse())
	})

	It("rejects a duplicate registration", func() {
		ctx, cancel := context.WithCancel(context.Background())
		Expect(reg.Register(42, cancel)).To(Succeed())

		_, second := context.WithCancel(context.Background())
		Expect(reg.Register(42, second)).To(MatchError(registry.ErrAlreadyRegistered))

		// The original handle survives the rejected attempt.
		Expect(reg.Abort(42)).To(BeTrue())
		Expect(ctx.Err()).To(MatchError(context.Canceled))
	})

	It("clears without cancelling", func() {
		ctx, cancel := context.WithCancel(context.Background())
		Expect(reg.Register(42, cancel)).To(Succeed())

		reg.Clear(42)
		Expect(ctx.Err()).To(BeNil())
		Expect(reg.Abort(42)).To(BeFalse())
	})

	It("allows re-registering after the round finished", func() {
		_, cancel := context.WithCancel(context.Background())
		Expect(reg.Register(42, cancel)).To(Succeed())
		reg.Clear(42)

		_, again := context.WithCancel(context.Background())
		Expect(reg.Register(42, again)).To(Succeed())
	})
})
