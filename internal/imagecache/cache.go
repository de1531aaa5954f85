/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package imagecache keeps recently previewed template images in memory so the
// image picker does not re-request them from the device service.
package imagecache

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the number of images kept when no size is configured.
const DefaultSize = 128

// Cache maps image names to base64 image data.
type Cache struct {
	c *lru.Cache[string, string]
}

func New(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create image cache: %w", err)
	}
	return &Cache{c: c}, nil
}

// key folds the optional png extension so "a" and "a.png" share an entry.
func key(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".png") {
		return name[:len(name)-4]
	}
	return name
}

func (c *Cache) Get(name string) (string, bool) { return c.c.Get(key(name)) }

func (c *Cache) Put(name, data string) { c.c.Add(key(name), data) }

// Forget drops name, used after a save replaces the image.
func (c *Cache) Forget(name string) { c.c.Remove(key(name)) }

func (c *Cache) Len() int { return c.c.Len() }

func (c *Cache) Purge() { c.c.Purge() }
