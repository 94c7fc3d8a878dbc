// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xmidt-org/arrange"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

const usage = `dockyard mirrors the containers and images of a docker engine in memory,
tracks their CPU and memory usage and serves the mirror over HTTP.

Configuration is read from dockyard.yaml in /etc/dockyard, $HOME/.dockyard or
the working directory. Any key can be set through a DOCKYARD_ environment
variable, i.e. DOCKYARD_DOCKER_ADDRESS=tcp://10.0.0.2:2375.

Usage: %s [flags]

`

// flag name -> configuration key it overrides
var flagKeys = map[string]string{
	"docker": "docker.address",
	"listen": "servers.primary.address",
	"nats":   "nats.url",
}

func setupFlagSet(fs *pflag.FlagSet) {
	fs.StringP("file", "f", "", "dockyard configuration file.  Skips the /etc/dockyard, $HOME/.dockyard and working directory search.")
	fs.StringP("docker", "H", "", "docker engine to mirror, i.e. unix:///var/run/docker.sock or tcp://10.0.0.2:2375.  Overrides docker.address.")
	fs.StringP("listen", "l", "", "address of the container and image API.  Overrides servers.primary.address.")
	fs.StringP("nats", "n", "", "NATS server receiving change notifications.  Overrides nats.url and turns publishing on.")
	fs.BoolP("debug", "d", false, "logs every poll, event tick and watcher at debug level.  Overrides logging.level.")
	fs.BoolP("version", "v", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), usage, fs.Name())
		fs.PrintDefaults()
	}
}

// setup parses args, loads the configuration and builds the application
// logger. It returns pflag.ErrHelp once help or version output was written.
func setup(args []string) (*viper.Viper, *zap.Logger, error) {
	l, err := zap.NewDevelopment() // initial value
	if err != nil {
		return nil, l, fmt.Errorf("failed to create zap logger: %w", err)
	}

	fs := pflag.NewFlagSet(applicationName, pflag.ContinueOnError)
	setupFlagSet(fs)
	if err = fs.Parse(args); err != nil {
		return nil, l, fmt.Errorf("failed to parse args: %w", err)
	}
	if printVersion, _ := fs.GetBool("version"); printVersion {
		printVersionInfo(os.Stdout)
		return nil, l, pflag.ErrHelp
	}

	v := viper.New()
	v.SetEnvPrefix(strings.ToUpper(applicationName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file, _ := fs.GetString("file")
	if err = readConfig(v, file); err != nil {
		return v, l, fmt.Errorf("failed to read config file: %w", err)
	}
	applyFlags(v, fs)

	var c sallust.Config
	err = v.UnmarshalKey("logging", &c, arrange.ComposeDecodeHooks(sallust.DecodeHook))
	if err != nil {
		return v, l, err
	}

	l, err = c.Build()
	return v, l, err
}

// readConfig loads file, or searches the standard locations when file is
// empty. A search that finds nothing leaves the defaults in place, which
// watch the local docker socket.
func readConfig(v *viper.Viper, file string) error {
	if len(file) > 0 {
		v.SetConfigFile(file)
		return v.ReadInConfig()
	}

	v.SetConfigName(applicationName)
	v.AddConfigPath(fmt.Sprintf("/etc/%s", applicationName))
	v.AddConfigPath(fmt.Sprintf("$HOME/.%s", applicationName))
	v.AddConfigPath(".")
	err := v.ReadInConfig()

	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

func applyFlags(v *viper.Viper, fs *pflag.FlagSet) {
	for name, key := range flagKeys {
		if value, _ := fs.GetString(name); len(value) > 0 {
			v.Set(key, value)
		}
	}
	if fs.Changed("nats") {
		v.Set("nats.enabled", true)
	}
	if debug, _ := fs.GetBool("debug"); debug {
		v.Set("logging.level", "DEBUG")
	}
}

func printVersionInfo(w io.Writer) {
	fmt.Fprintf(w, "%s:\n", applicationName)
	fmt.Fprintf(w, "  version: \t%s\n", Version)
	fmt.Fprintf(w, "  go version: \t%s\n", runtime.Version())
	fmt.Fprintf(w, "  built time: \t%s\n", BuildTime)
	fmt.Fprintf(w, "  git commit: \t%s\n", GitCommit)
	fmt.Fprintf(w, "  os/arch: \t%s/%s\n", runtime.GOOS, runtime.GOARCH)
}
