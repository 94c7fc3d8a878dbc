// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package samples

import (
	"path"
	"regexp"
	"strings"

	"github.com/xmidt-org/dockyard/engine"
)

var containerID = regexp.MustCompile(`^[0-9a-f]{12,64}$`)

// Resolve maps a cgroup name onto the id of the container it belongs to. It
// understands the systemd layouts (docker-<id>.scope, docker-<id>.slice), the
// lxc layout (lxc/<id>), bare ids, and any cgroup path ending in one of those.
func Resolve(name string) (string, bool) {
	name = strings.TrimSuffix(name, "/")
	if name == "" {
		return "", false
	}

	base := path.Base(name)
	if path.Base(path.Dir(name)) == "lxc" {
		return validID(base)
	}
	for _, suffix := range []string{".scope", ".slice"} {
		if strings.HasPrefix(base, "docker-") && strings.HasSuffix(base, suffix) {
			return validID(strings.TrimSuffix(strings.TrimPrefix(base, "docker-"), suffix))
		}
	}
	return validID(base)
}

func validID(id string) (string, bool) {
	if !containerID.MatchString(id) {
		return "", false
	}
	return id, true
}

// Namer resolves cgroup names for the engine's sample merger.
var Namer engine.Namer = engine.NamerFunc(Resolve)
