package model

import "strings"

// Channel is the top-level customer classification used by segmentation.
type Channel string

const (
	// ChannelDigital covers e-commerce and other online channels.
	ChannelDigital Channel = "digital"
	// ChannelNational covers the national/distributor channel and is the
	// default when a customer's channel label is missing or unknown.
	ChannelNational Channel = "national"
)

var digitalChannelKeywords = []string{"DIGITAL", "ECOMMERCE", "WEB", "ONLINE", "E-COMMERCE"}

// ClassifyChannel maps a raw sales-channel label onto a Channel.
func ClassifyChannel(label string) Channel {
	upper := strings.ToUpper(strings.TrimSpace(label))
	for _, kw := range digitalChannelKeywords {
		if strings.Contains(upper, kw) {
			return ChannelDigital
		}
	}
	return ChannelNational
}

// Customer is the per-window view of one buyer used by RFM scoring. It is
// derived from sale lines and never persisted on its own.
type Customer struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Channel     Channel `json:"channel"`
	ID          int64   `json:"id"`
	Monetary    float64 `json:"monetary"`
	Frequency   int     `json:"frequency"`
	RecencyDays int     `json:"recency_days"`
	RScore      int     `json:"r_score"`
	FScore      int     `json:"f_score"`
	MScore      int     `json:"m_score"`
}
