// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xmidt-org/dockyard/model"
)

const (
	defaultEventsPath      = "/events"
	defaultReconnectDelay  = time.Second
	defaultIDField         = "Id"
	defaultContainerList   = 4 * time.Second
	defaultContainerDetail = 5 * time.Second
	defaultImageList       = 10 * time.Second
	defaultImageDetail     = 10 * time.Second
)

// DefaultStopTimeout is the grace period docker gives a container to exit
// before killing it.
const DefaultStopTimeout = 10 * time.Second

// Default sample fields, in tuple order.
const (
	CPUUsageField    = "CpuUsage"
	MemoryUsageField = "MemoryUsage"
)

// Config drives the synchronization engine.
type Config struct {
	// EventsPath is the streaming endpoint of change notifications.
	// (Optional). Defaults to /events.
	EventsPath string

	// ReconnectDelay is how long the event channel waits before reopening a
	// dropped stream.
	// (Optional). Defaults to 1 second.
	ReconnectDelay time.Duration `validate:"gt=0"`

	Containers KindConfig
	Images     KindConfig

	// SampleFields names the attributes each position of a sample tuple is
	// written to.
	// (Optional). Defaults to CpuUsage, MemoryUsage.
	SampleFields []string `validate:"dive,required"`
}

// KindConfig describes how one collection is listed and watched.
type KindConfig struct {
	// ListPath is the collection listing endpoint.
	ListPath string `validate:"required,startswith=/"`

	// ListParams are query parameters sent with every listing fetch.
	ListParams map[string]string

	// DetailPath is a format string taking the escaped item id.
	DetailPath string `validate:"required,startswith=/,contains=%s"`

	// IDField is the listing attribute holding the item id.
	// (Optional). Defaults to Id.
	IDField string `validate:"required"`

	ListInterval   time.Duration `validate:"gt=0"`
	DetailInterval time.Duration `validate:"gt=0"`

	// FollowEvents makes the event stream trigger both scans and detail
	// refreshes for this kind.
	FollowEvents bool
}

// DefaultConfig returns the configuration matching the docker engine API.
// Decoding user configuration on top of it keeps the defaults of anything
// left unset.
func DefaultConfig() Config {
	return Config{
		EventsPath:     defaultEventsPath,
		ReconnectDelay: defaultReconnectDelay,
		Containers: KindConfig{
			ListPath:       "/containers/json",
			ListParams:     map[string]string{"all": "1"},
			DetailPath:     "/containers/%s/json",
			IDField:        defaultIDField,
			ListInterval:   defaultContainerList,
			DetailInterval: defaultContainerDetail,
			FollowEvents:   true,
		},
		Images: KindConfig{
			ListPath:       "/images/json",
			DetailPath:     "/images/%s/json",
			IDField:        defaultIDField,
			ListInterval:   defaultImageList,
			DetailInterval: defaultImageDetail,
		},
		SampleFields: []string{CPUUsageField, MemoryUsageField},
	}
}

// kind returns the configuration of k.
func (c Config) kind(k model.Kind) KindConfig {
	if k == model.Images {
		return c.Images
	}
	return c.Containers
}

func (k KindConfig) listParams() url.Values {
	if len(k.ListParams) == 0 {
		return nil
	}
	params := make(url.Values, len(k.ListParams))
	for key, value := range k.ListParams {
		params.Set(key, value)
	}
	return params
}

func (k KindConfig) detailPath(id string) string {
	return fmt.Sprintf(k.DetailPath, url.PathEscape(id))
}

func validateConfig(config *Config) error {
	defaults := DefaultConfig()
	if config.EventsPath == "" {
		config.EventsPath = defaults.EventsPath
	}
	if config.ReconnectDelay == 0 {
		config.ReconnectDelay = defaults.ReconnectDelay
	}
	if len(config.SampleFields) == 0 {
		config.SampleFields = defaults.SampleFields
	}
	fillKindDefaults(&config.Containers, defaults.Containers)
	fillKindDefaults(&config.Images, defaults.Images)

	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func fillKindDefaults(k *KindConfig, defaults KindConfig) {
	if k.ListPath == "" {
		k.ListPath = defaults.ListPath
		if k.ListParams == nil {
			k.ListParams = defaults.ListParams
		}
	}
	if k.DetailPath == "" {
		k.DetailPath = defaults.DetailPath
	}
	if k.IDField == "" {
		k.IDField = defaults.IDField
	}
	if k.ListInterval == 0 {
		k.ListInterval = defaults.ListInterval
	}
	if k.DetailInterval == 0 {
		k.DetailInterval = defaults.DetailInterval
	}
}
