// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/vwlearners/engines"
	"github.com/gomlx/vwlearners/pkg/learners"
	"github.com/gomlx/vwlearners/pkg/support/xslices"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable(alignments ...lipgloss.Position) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				s = headerRowStyle
				return
			}
			switch {
			case row%2 == 0:
				// Even row style.
				s = oddRowStyle
			default:
				// Odd row style
				s = evenRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			}
			s = s.Align(alignment)
			return
		})
}

// printHandles prints the open handles of the factory, sorted.
func printHandles(factory *learners.Factory, named []namedLearner) {
	names := make(map[engines.Handle]string, len(named))
	shapes := make(map[engines.Handle]string, len(named))
	for _, nl := range named {
		names[nl.learner.Handle()] = nl.name
		shapes[nl.learner.Handle()] = nl.learner.Shape().String()
	}
	snapshot := factory.Snapshot()
	fmt.Println(titleStyle.Render(fmt.Sprintf("Open handles (%s, engine %q)",
		humanize.Comma(int64(len(snapshot))), factory.Engine().Name())))
	table := newPlainTable(lipgloss.Right)
	table.Headers("Handle", "Name", "Shape", "Command")
	for _, handle := range xslices.SortedKeys(snapshot) {
		table.Row(fmt.Sprintf("%#x", uintptr(handle)), names[handle], shapes[handle], snapshot[handle])
	}
	fmt.Println(table.Render())
}

// printResults prints the number of examples and the last prediction of each learner.
func printResults(results []result, learn bool) {
	title := "Predictions"
	if learn {
		title = "Learning"
	}
	fmt.Println(titleStyle.Render(title))
	table := newPlainTable(lipgloss.Left, lipgloss.Left, lipgloss.Right, lipgloss.Left)
	table.Headers("Name", "Shape", "# examples", "Last prediction")
	for _, r := range results {
		table.Row(r.name, r.shape, humanize.Comma(r.numExamples), r.last)
	}
	fmt.Println(table.Render())
}
