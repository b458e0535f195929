package domain

import "time"

// DeliveryHistory records which paper ids were already delivered on one
// output channel. Mutation happens only through RecordDelivered, so dedupe
// bookkeeping stays testable apart from any I/O.
type DeliveryHistory struct {
	DeliveredIDs          map[string]struct{}
	DeliveredBySubchannel map[string]map[string]struct{}
	LastDeliveredAt       *time.Time
}

// NewDeliveryHistory returns an empty history for first use of a channel.
func NewDeliveryHistory() DeliveryHistory {
	return DeliveryHistory{
		DeliveredIDs:          map[string]struct{}{},
		DeliveredBySubchannel: map[string]map[string]struct{}{},
	}
}

// Contains reports whether the id was delivered on the channel, or on the
// given subchannel when one is named.
func (h DeliveryHistory) Contains(id, subchannel string) bool {
	if _, ok := h.DeliveredIDs[id]; ok {
		return true
	}
	if subchannel != "" {
		if set, ok := h.DeliveredBySubchannel[subchannel]; ok {
			if _, ok := set[id]; ok {
				return true
			}
		}
	}
	return false
}

// FilterNew returns the papers not yet delivered on this channel (and, when
// subchannel is non-empty, not delivered on that subchannel either).
func (h DeliveryHistory) FilterNew(papers []Paper, subchannel string) []Paper {
	fresh := make([]Paper, 0, len(papers))
	for _, p := range papers {
		if !h.Contains(p.ID, subchannel) {
			fresh = append(fresh, p)
		}
	}
	return fresh
}

// RecordDelivered marks each paper as delivered, updating the subchannel set
// when one is named, and bumps LastDeliveredAt.
func (h *DeliveryHistory) RecordDelivered(papers []Paper, subchannel string, now time.Time) {
	if h.DeliveredIDs == nil {
		h.DeliveredIDs = map[string]struct{}{}
	}
	if h.DeliveredBySubchannel == nil {
		h.DeliveredBySubchannel = map[string]map[string]struct{}{}
	}
	for _, p := range papers {
		if p.ID == "" {
			continue
		}
		h.DeliveredIDs[p.ID] = struct{}{}
		if subchannel != "" {
			set := h.DeliveredBySubchannel[subchannel]
			if set == nil {
				set = map[string]struct{}{}
				h.DeliveredBySubchannel[subchannel] = set
			}
			set[p.ID] = struct{}{}
		}
	}
	if len(papers) > 0 {
		t := now
		h.LastDeliveredAt = &t
	}
}
