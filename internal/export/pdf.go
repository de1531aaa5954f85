/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jung-kurt/gofpdf"

	"questeditor/internal/action"
	"questeditor/internal/quest"
)

// PDFOptions controls the quest sheet export.
// - IDs: quests to include in document order; empty means all
// - Title: document title; defaults to "Quest sheet"
// Units are millimetres on A4 portrait.
type PDFOptions struct {
	IDs   []string
	Title string
}

// directionNames maps the direction labels to ASCII for the core fonts.
var directionNames = map[string]string{
	"右上": "up-right",
	"右下": "down-right",
	"左上": "up-left",
	"左下": "down-left",
}

const (
	pageMargin = 15.0
	rowHeight  = 6.0
	colIndex   = 12.0
	colVariant = 32.0
)

// ExportQuestSheetPDF writes one section per quest listing both item lists.
func ExportQuestSheetPDF(doc quest.Document, outPath string, opt PDFOptions) error {
	ids := opt.IDs
	if len(ids) == 0 {
		ids = doc.IDs()
	}
	for _, id := range ids {
		if !doc.Has(id) {
			return fmt.Errorf("export pdf: quest %q: %w", id, quest.ErrNotFound)
		}
	}
	title := opt.Title
	if title == "" {
		title = "Quest sheet"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(asciiText(title), false)
	pdf.SetAuthor("Quest Editor", false)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pageW, _ := pdf.GetPageSize()
	colSummary := pageW - 2*pageMargin - colIndex - colVariant

	for _, id := range ids {
		sc, _ := doc.Get(id)
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 16)
		pdf.CellFormat(0, 10, asciiText(id), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		meta := fmt.Sprintf("name: %s   type: %s", orDash(sc.DisplayName), orDash(sc.Type))
		pdf.CellFormat(0, 7, asciiText(meta), "", 1, "L", false, 0, "")

		for _, k := range []quest.ListKind{quest.ListDungeon, quest.ListVillage} {
			list := sc.List(k)
			pdf.Ln(3)
			pdf.SetFont("Helvetica", "B", 12)
			pdf.CellFormat(0, 8, fmt.Sprintf("%s list (%d)", k, len(list)), "", 1, "L", false, 0, "")
			if len(list) == 0 {
				pdf.SetFont("Helvetica", "I", 10)
				pdf.CellFormat(0, rowHeight, "empty", "", 1, "L", false, 0, "")
				continue
			}
			pdf.SetFont("Helvetica", "B", 10)
			pdf.SetFillColor(230, 230, 230)
			pdf.CellFormat(colIndex, rowHeight, "#", "1", 0, "C", true, 0, "")
			pdf.CellFormat(colVariant, rowHeight, "variant", "1", 0, "L", true, 0, "")
			pdf.CellFormat(colSummary, rowHeight, "values", "1", 1, "L", true, 0, "")
			pdf.SetFont("Helvetica", "", 9)
			for i, it := range list {
				lines := pdf.SplitLines([]byte(asciiText(action.Summary(it))), colSummary-2)
				if len(lines) == 0 {
					lines = [][]byte{nil}
				}
				h := rowHeight * float64(len(lines))
				x, y := pdf.GetXY()
				pdf.CellFormat(colIndex, h, fmt.Sprint(i), "1", 0, "C", false, 0, "")
				pdf.CellFormat(colVariant, h, string(it.Variant()), "1", 0, "L", false, 0, "")
				pdf.Rect(x+colIndex+colVariant, y, colSummary, h, "D")
				for j, line := range lines {
					pdf.SetXY(x+colIndex+colVariant, y+float64(j)*rowHeight)
					pdf.CellFormat(colSummary, rowHeight, string(line), "", 0, "L", false, 0, "")
				}
				pdf.SetXY(x, y+h)
			}
		}
	}
	if len(ids) == 0 {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "I", 12)
		pdf.CellFormat(0, 10, "no quests", "", 1, "L", false, 0, "")
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// asciiText replaces direction labels with English names and any other
// non-ASCII rune with '?', which the core fonts cannot render.
func asciiText(s string) string {
	for k, v := range directionNames {
		s = strings.ReplaceAll(s, k, v)
	}
	if isASCII(s) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
