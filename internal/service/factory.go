package service

import (
	"inkwell.app/assistant/core/config"
	"inkwell.app/assistant/internal/queue"
	"inkwell.app/assistant/internal/registry"
	"inkwell.app/assistant/internal/relay"
	"inkwell.app/assistant/internal/store"
	"inkwell.app/assistant/internal/upstream"
)

type Services struct {
	stores     *store.Stores
	txRunner   TxRunner
	workOSCfg  config.WorkOSConfig
	dispatcher upstream.Dispatcher
	engine     *relay.Engine
	registry   *registry.Registry
	producer   queue.Producer
}

func NewServices(
	stores *store.Stores,
	txRunner TxRunner,
	workOSCfg config.WorkOSConfig,
	dispatcher upstream.Dispatcher,
	engine *relay.Engine,
	reg *registry.Registry,
	producer queue.Producer,
) *Services {
	return &Services{
		stores:     stores,
		txRunner:   txRunner,
		workOSCfg:  workOSCfg,
		dispatcher: dispatcher,
		engine:     engine,
		registry:   reg,
		producer:   producer,
	}
}

func (s *Services) Auth() AuthService {
	return NewAuthService(s.stores.Users(), s.stores.Sessions(), s.workOSCfg)
}

func (s *Services) Chats() ChatService {
	return NewChatService(
		s.stores.Conversations(),
		s.stores.Rounds(),
		s.txRunner,
		s.dispatcher,
		s.engine,
		s.registry,
		s.producer,
	)
}
