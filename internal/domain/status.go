package domain

import "strings"

// StockClassification tags an inventory line's state for one run.
type StockClassification string

const (
	Overstock  StockClassification = "OVERSTOCK"
	Understock StockClassification = "UNDERSTOCK"
	Balanced   StockClassification = "BALANCED"
)

// RunStage is the engine's per-run state machine.
// IDLE -> ANALYZING -> MATCHING -> FILTERING -> OPTIMIZING -> ASSEMBLING -> DONE|FAILED
type RunStage string

const (
	StageIdle       RunStage = "IDLE"
	StageAnalyzing  RunStage = "ANALYZING"
	StageMatching   RunStage = "MATCHING"
	StageFiltering  RunStage = "FILTERING"
	StageOptimizing RunStage = "OPTIMIZING"
	StageAssembling RunStage = "ASSEMBLING"
	StageDone       RunStage = "DONE"
	StageFailed     RunStage = "FAILED"
)

var priorityOrder = map[PriorityLevel]int{
	PriorityHigh:   1,
	PriorityMedium: 2,
	PriorityLow:    3,
}

// PriorityOrder returns the sort rank of a priority level (HIGH first).
func PriorityOrder(p PriorityLevel) int {
	if order, ok := priorityOrder[p]; ok {
		return order
	}

	return 4
}

var actionLabels = map[string]RecommendedAction{
	"execute_immediately": ActionExecuteImmediately,
	"schedule_delivery":   ActionScheduleDelivery,
	"manual_review":       ActionManualReview,
}

// ParseAction returns the action for a given label (case-insensitive).
func ParseAction(label string) (RecommendedAction, bool) {
	action, ok := actionLabels[strings.ToLower(label)]

	return action, ok
}
