package service

import (
	"regexp"
	"strconv"
	"strings"
)

// defaultSubtaskXP is used when a checklist item carries no XP annotation.
const defaultSubtaskXP = 10

var (
	// day headings look like "## Day 3 - Museum"; the separator may be a
	// hyphen, en dash, or em dash
	dayHeadingPattern = regexp.MustCompile(`^##\s+Day\s+(\d+)\s+[-\x{2013}\x{2014}]\s+(.+)$`)
	// checklist items accept "-" or "*" bullets with an empty checkbox
	subtaskPattern = regexp.MustCompile(`^[*-]\s+\[\s?\]\s*(.+)$`)
	// optional trailing XP annotation, e.g. "(20 XP)"
	xpSuffixPattern = regexp.MustCompile(`(?i)\((\d+)\s*XP\)$`)
)

// ParsedSubtask is one checklist item lifted out of the document.
type ParsedSubtask struct {
	Text string
	XP   int
}

// ParsedDay is one day section with its heading number and items.
type ParsedDay struct {
	HeadingNumber int
	Title         string
	Subtasks      []ParsedSubtask
}

// ParsedPlan is the validated result of parsing a plan document.
type ParsedPlan struct {
	Title string
	Days  []ParsedDay
}

// ParsePlanMarkdown parses a markdown plan document into a day/subtask tree.
// The grammar is line oriented: a single "# " title, "## Day <n> - <title>"
// headings numbered sequentially from 1, and "- [ ]" checklist items. Blank
// lines are ignored and any other content is a fatal *FormatError; parsing
// never partially succeeds.
func ParsePlanMarkdown(markdown string) (*ParsedPlan, error) {
	lines := strings.Split(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n")

	var (
		title      string
		titleSeen  bool
		days       []ParsedDay
		currentDay *ParsedDay
	)

	for _, rawLine := range lines {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		if !titleSeen {
			if strings.HasPrefix(line, "# ") {
				title = strings.TrimSpace(line[2:])
				if title == "" {
					return nil, formatErrorf("markdown plan must start with a '# ' title heading")
				}
				titleSeen = true
				continue
			}
			return nil, formatErrorf("markdown plan must start with a '# ' title heading")
		}

		// further top-level headings are ignored, not treated as a new plan
		if strings.HasPrefix(line, "# ") {
			continue
		}

		if match := dayHeadingPattern.FindStringSubmatch(line); match != nil {
			dayNumber, err := strconv.Atoi(match[1])
			if err != nil {
				return nil, formatErrorf("invalid day number in heading: '%s'", line)
			}

			expectedNumber := 1
			if currentDay != nil {
				if len(currentDay.Subtasks) == 0 {
					return nil, formatErrorf("Day %d has no checklist items", currentDay.HeadingNumber)
				}
				expectedNumber = currentDay.HeadingNumber + 1
				days = append(days, *currentDay)
			}

			if dayNumber != expectedNumber {
				return nil, formatErrorf(
					"day headings must be sequential starting at 1; expected Day %d, found Day %d",
					expectedNumber, dayNumber,
				)
			}

			dayTitle := strings.TrimSpace(match[2])
			if dayTitle == "" {
				return nil, formatErrorf("day title cannot be empty")
			}

			currentDay = &ParsedDay{HeadingNumber: dayNumber, Title: dayTitle}
			continue
		}

		if match := subtaskPattern.FindStringSubmatch(line); match != nil {
			if currentDay == nil {
				return nil, formatErrorf("checklist items must appear under a day heading")
			}

			text, xp, err := extractXPValue(strings.TrimSpace(match[1]))
			if err != nil {
				return nil, err
			}

			currentDay.Subtasks = append(currentDay.Subtasks, ParsedSubtask{Text: text, XP: xp})
			continue
		}

		return nil, formatErrorf("unrecognized markdown content: '%s'", line)
	}

	if !titleSeen {
		return nil, formatErrorf("markdown plan is empty; no title heading found")
	}

	if currentDay == nil {
		return nil, formatErrorf("no day sections found in markdown plan")
	}

	if len(currentDay.Subtasks) == 0 {
		return nil, formatErrorf("Day %d has no checklist items", currentDay.HeadingNumber)
	}
	days = append(days, *currentDay)

	return &ParsedPlan{Title: title, Days: days}, nil
}

// extractXPValue strips a trailing "(N XP)" annotation and returns the
// cleaned text together with the item's XP value.
func extractXPValue(text string) (string, int, error) {
	if match := xpSuffixPattern.FindStringSubmatch(text); match != nil {
		xp, err := strconv.Atoi(match[1])
		if err != nil {
			return "", 0, formatErrorf("invalid XP annotation: '%s'", text)
		}

		cleaned := strings.TrimRight(text[:len(text)-len(match[0])], " \t")
		if cleaned == "" {
			return "", 0, formatErrorf("task description cannot be empty")
		}
		return cleaned, xp, nil
	}

	if text == "" {
		return "", 0, formatErrorf("task description cannot be empty")
	}
	return text, defaultSubtaskXP, nil
}
