/*
 *	Copyright 2024 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package framework

import (
	"os"
	"plugin"

	"github.com/pkg/errors"
)

// goPluginHandle is a library built with "go build -buildmode=plugin".
type goPluginHandle struct {
	p *plugin.Plugin
}

// Lookup implements libraryHandle.
func (h goPluginHandle) Lookup(symbol string) (any, error) {
	return h.p.Lookup(symbol)
}

// openGoPlugin opens the Go plugin in libPath. Go plugins are never closed.
func openGoPlugin(libPath string) (libraryHandle, error) {
	info, err := os.Stat(libPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %q", libPath)
	}
	if info.IsDir() {
		return nil, errors.Errorf("library path %q is a directory!?", libPath)
	}
	p, err := plugin.Open(libPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open Go plugin %q: it must be built with the same Go version "+
			"and the same versions of the packages it shares with the host", libPath)
	}
	return goPluginHandle{p: p}, nil
}
