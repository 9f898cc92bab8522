// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/shopchat/internal/proxy"
	"github.com/jeranaias/shopchat/internal/router"
)

// UsageStats are the running totals of one session. TotalCost and
// TotalCalls only grow.
type UsageStats struct {
	TotalCost      float64        `json:"totalCost"`
	TotalCalls     int            `json:"totalCalls"`
	LastCall       *proxy.Stats   `json:"lastCallStats"`
	CurrentModel   string         `json:"currentModel"`
	CurrentBackend router.Backend `json:"currentApiType"`
}

// merge folds one call's stats into the totals. The call count and cost
// are additive; the last-call stats and the current model are replaced.
func (u *UsageStats) merge(choice router.Choice, st proxy.Stats) {
	u.TotalCost += st.TotalCost
	u.TotalCalls++
	u.LastCall = &st
	u.CurrentModel = choice.Model
	u.CurrentBackend = choice.Backend
}

func (u UsageStats) clone() UsageStats {
	if u.LastCall != nil {
		last := *u.LastCall
		u.LastCall = &last
	}
	return u
}
