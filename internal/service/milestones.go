package service

import (
	"fmt"
	"sort"
	"stackcommunity_backend/internal/config"
)

type ActivityType string

const (
	ActivityQuestion ActivityType = "question"
	ActivityAnswer   ActivityType = "answer"
)

type MilestoneRule struct {
	Threshold int
	BadgeName string
}

// MilestoneTable 每种活动一组按阈值升序排列的规则
type MilestoneTable map[ActivityType][]MilestoneRule

func DefaultMilestoneTable() MilestoneTable {
	return NewMilestoneTable(map[string]config.MilestoneConfig{
		string(ActivityQuestion): {Thresholds: []int{50, 100}, NameFormat: "%d Questions"},
		string(ActivityAnswer):   {Thresholds: []int{50, 100}, NameFormat: "%d Answers"},
	})
}

func NewMilestoneTable(cfg map[string]config.MilestoneConfig) MilestoneTable {
	table := make(MilestoneTable, len(cfg))
	for activity, m := range cfg {
		thresholds := append([]int(nil), m.Thresholds...)
		sort.Ints(thresholds)

		rules := make([]MilestoneRule, 0, len(thresholds))
		for i, t := range thresholds {
			if i > 0 && thresholds[i-1] == t {
				continue
			}
			rules = append(rules, MilestoneRule{Threshold: t, BadgeName: fmt.Sprintf(m.NameFormat, t)})
		}
		table[ActivityType(activity)] = rules
	}
	return table
}

// Match 只在计数恰好等于某个阈值时命中
func (t MilestoneTable) Match(activity ActivityType, count int) (MilestoneRule, bool) {
	for _, rule := range t[activity] {
		if rule.Threshold == count {
			return rule, true
		}
	}
	return MilestoneRule{}, false
}
