package model

import "time"

type BadgeKind string

const (
	BadgeMilestone   BadgeKind = "milestone"
	BadgeCommunity   BadgeKind = "community"
	BadgeLeaderboard BadgeKind = "leaderboard"
)

// Badge 以 JSON 数组形式内嵌在 users.badges 中，数组顺序即获得顺序
// swagger:model Badge
type Badge struct {
	Kind     BadgeKind `json:"kind"`
	Name     string    `json:"name"`
	EarnedAt time.Time `json:"earnedAt"`
}

// ContainsBadge 按名称精确匹配
func ContainsBadge(badges []Badge, name string) bool {
	for _, b := range badges {
		if b.Name == name {
			return true
		}
	}
	return false
}

// DedupeBadges 保留每个名称第一次出现的徽章，保持原有顺序
func DedupeBadges(badges []Badge) []Badge {
	seen := make(map[string]struct{}, len(badges))
	out := make([]Badge, 0, len(badges))
	for _, b := range badges {
		if _, ok := seen[b.Name]; ok {
			continue
		}
		seen[b.Name] = struct{}{}
		out = append(out, b)
	}
	return out
}
