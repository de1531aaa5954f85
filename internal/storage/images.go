/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// UserScriptDir receives images saved under a bare name.
const UserScriptDir = "userscript"

var imageExts = []string{".png", ".jpg", ".jpeg", ".bmp"}

// ImagesDir returns the local template image root.
func (ws *Workspace) ImagesDir() string { return filepath.Join(ws.Root, ImagesDirName) }

// ImageRelName maps a requested file name to the name the image is stored
// under: the png extension is dropped and bare names go to userscript/.
func ImageRelName(filename string) (string, error) {
	name := strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/")
	if strings.HasSuffix(strings.ToLower(name), ".png") {
		name = name[:len(name)-4]
	}
	if name == "" {
		return "", errors.New("image name is empty")
	}
	if !strings.Contains(name, "/") {
		name = UserScriptDir + "/" + name
	}
	clean := path.Clean(name)
	if strings.HasPrefix(clean, "../") || clean == ".." || path.IsAbs(clean) {
		return "", fmt.Errorf("image name %q escapes the image directory", filename)
	}
	return clean, nil
}

// SaveImage writes png data under the local image root and returns the
// stored name without extension, e.g. "userscript/ok_btn".
func SaveImage(ws *Workspace, filename string, png []byte) (string, error) {
	rel, err := ImageRelName(filename)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(ws.ImagesDir(), filepath.FromSlash(rel)+".png")
	if err := writeAtomic(dst, png); err != nil {
		return "", fmt.Errorf("save image %s: %w", rel, err)
	}
	return rel, nil
}

// ReadImage returns the bytes of a stored image. name may omit the png extension.
func ReadImage(ws *Workspace, name string) ([]byte, error) {
	rel := strings.ReplaceAll(name, "\\", "/")
	clean := path.Clean(rel)
	if strings.HasPrefix(clean, "../") || clean == ".." || path.IsAbs(clean) {
		return nil, fmt.Errorf("image name %q escapes the image directory", name)
	}
	p := filepath.Join(ws.ImagesDir(), filepath.FromSlash(clean))
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		b, err = os.ReadFile(p + ".png")
	}
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", name, err)
	}
	return b, nil
}

// ListImages returns slash-separated paths of all images under the local
// image root relative to it, sorted.
func ListImages(ws *Workspace) ([]string, error) {
	root := ws.ImagesDir()
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && p == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !isImage(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

func isImage(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range imageExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
