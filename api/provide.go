// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xmidt-org/dockyard/engine"
	"go.uber.org/fx"
)

// Config is the api section of the application configuration.
type Config struct {
	// EventBuffer is the number of events queued per websocket client
	// before events are dropped.
	// (Optional). Defaults to 64.
	EventBuffer int
}

type eventStreamIn struct {
	fx.In
	Facade Facade
	Config Config
}

// ProvideHandlers builds the handlers serving the engine.
func ProvideHandlers() fx.Option {
	return fx.Provide(
		func(e *engine.Engine) Facade {
			return e
		},
		fx.Annotated{
			Name:   "get_all_handler",
			Target: newGetAllItemsHandler,
		},
		fx.Annotated{
			Name:   "get_handler",
			Target: newGetItemHandler,
		},
		fx.Annotated{
			Name:   "delete_handler",
			Target: newDeleteItemHandler,
		},
		fx.Annotated{
			Name:   "action_handler",
			Target: newContainerActionHandler,
		},
		fx.Annotated{
			Name:   "create_handler",
			Target: newCreateContainerHandler,
		},
		fx.Annotated{
			Name: "status_handler",
			Target: func(e *engine.Engine) Handler {
				return newStatusHandler(e, e.Events().Alive)
			},
		},
		fx.Annotated{
			Name: "events_handler",
			Target: func(in eventStreamIn) Handler {
				return NewEventStream(in.Facade, in.Config.EventBuffer)
			},
		},
	)
}

type HandlersIn struct {
	fx.In
	GetAll Handler `name:"get_all_handler"`
	Get    Handler `name:"get_handler"`
	Delete Handler `name:"delete_handler"`
	Action Handler `name:"action_handler"`
	Create Handler `name:"create_handler"`
	Status Handler `name:"status_handler"`
	Events Handler `name:"events_handler"`
}

// Routes registers the handlers on router below apiBase.
func Routes(router *mux.Router, apiBase string, in HandlersIn) {
	kindPath := fmt.Sprintf("/%s/{%s:containers|images}", apiBase, KindVarKey)
	itemPath := fmt.Sprintf("%s/{%s}", kindPath, IDVarKey)
	containersPath := fmt.Sprintf("/%s/containers", apiBase)
	actionPath := fmt.Sprintf("%s/{%s}/{%s:start|stop|restart}", containersPath, IDVarKey, ActionVarKey)

	router.Handle(fmt.Sprintf("/%s/events", apiBase), in.Events).Methods(http.MethodGet)
	router.Handle(fmt.Sprintf("/%s/status", apiBase), in.Status).Methods(http.MethodGet)
	router.Handle(containersPath, in.Create).Methods(http.MethodPost)
	router.Handle(actionPath, in.Action).Methods(http.MethodPost)
	router.Handle(kindPath, in.GetAll).Methods(http.MethodGet)
	router.Handle(itemPath, in.Get).Methods(http.MethodGet)
	router.Handle(itemPath, in.Delete).Methods(http.MethodDelete)
}
