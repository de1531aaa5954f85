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
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"questeditor/internal/quest"
)

// WhereUsed returns every reference to image, in document order of quest id,
// list and item position.
func WhereUsed(ctx context.Context, db *sql.DB, image string) ([]quest.ImageRef, error) {
	rows, err := db.QueryContext(ctx, `SELECT image, quest_id, list, item_index, field, sub_index
		FROM image_refs WHERE image = ? ORDER BY rowid`, imageKey(image))
	if err != nil {
		return nil, fmt.Errorf("query image refs: %w", err)
	}
	defer rows.Close()
	var out []quest.ImageRef
	for rows.Next() {
		var r quest.ImageRef
		var list string
		if err := rows.Scan(&r.Image, &r.QuestID, &list, &r.Index, &r.Field, &r.SubIndex); err != nil {
			return nil, fmt.Errorf("scan image ref: %w", err)
		}
		r.List = quest.ListKind(list)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Dangling returns referenced image names missing from known, sorted.
func Dangling(ctx context.Context, db *sql.DB, known []string) ([]string, error) {
	have := make(map[string]bool, len(known))
	for _, k := range known {
		have[imageKey(k)] = true
	}
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT image FROM image_refs`)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		if !have[name] {
			out = append(out, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// ItemHit is one search match.
type ItemHit struct {
	QuestID string
	List    quest.ListKind
	Index   int
	Variant string
	Text    string
}

// SearchItems runs an FTS5 query over item summaries. limit <= 0 means 50.
func SearchItems(ctx context.Context, db *sql.DB, text string, limit int) ([]ItemHit, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `SELECT i.quest_id, i.list, i.item_index, i.variant, i.text
		FROM fts_items JOIN items i ON fts_items.rowid = i.item_id
		WHERE fts_items MATCH ? ORDER BY rank LIMIT ?`, text, limit)
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	defer rows.Close()
	var out []ItemHit
	for rows.Next() {
		var h ItemHit
		var list string
		if err := rows.Scan(&h.QuestID, &list, &h.Index, &h.Variant, &h.Text); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		h.List = quest.ListKind(list)
		out = append(out, h)
	}
	return out, rows.Err()
}
