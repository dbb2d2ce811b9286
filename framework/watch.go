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
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// WatchKernelLibraries watches dir and loads (see LoadKernelMetaInfoAndRegisterKernel) every
// kernel library created or written in it, until ctx is done.
//
// Failures are logged. Libraries that fail to open are tried again on their next write.
func (h *Host) WatchKernelLibraries(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating fsnotify watcher")
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "watching directory %q", dir)
	}
	klog.V(1).Infof("watching %q for kernel libraries", dir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || pathToLibraryName(event.Name) == "" {
				continue
			}
			if h.IsLoaded(event.Name) {
				continue
			}
			h.available.Flush()
			report, err := h.LoadKernelMetaInfoAndRegisterKernel(event.Name)
			if err != nil {
				klog.Warningf("failed to load kernel library %q: %v", event.Name, err)
				continue
			}
			klog.Infof("kernel library %q loaded: %s", event.Name, report)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			klog.Errorf("watching %q: %v", dir, err)
		}
	}
}
