// Package store implements the domain store (C5): typed operations layered
// on top of the unified storage engine (C4) and the durable tier's typed
// tables (C3), enforcing the cache key namespacing discipline from spec §6.
package store

import (
	"fmt"
)

func customerChatKey(chatUserID string) string   { return fmt.Sprintf("customer:chat:%s", chatUserID) }
func customerTicketKey(ticketID string) string   { return fmt.Sprintf("customer:ticket:%s", ticketID) }
func mappingThreadKey(chatThreadID string) string { return fmt.Sprintf("mapping:thread:%s", chatThreadID) }
func mappingTicketKey(ticketID string) string    { return fmt.Sprintf("mapping:ticket:%s", ticketID) }
func botConfigKey(key string) string             { return fmt.Sprintf("bot:config:%s", key) }

// CachePattern is a closed enum of clearable key namespaces, validated
// against in clearCache to keep caller-supplied identifiers from reaching
// the key space unchecked (spec §4.5).
type CachePattern string

const (
	PatternCustomerByChat   CachePattern = "customer:chat"
	PatternCustomerByTicket CachePattern = "customer:ticket"
	PatternMappingByThread  CachePattern = "mapping:thread"
	PatternMappingByTicket  CachePattern = "mapping:ticket"
	PatternBotConfig        CachePattern = "bot:config"
)

func (p CachePattern) valid() bool {
	switch p {
	case PatternCustomerByChat, PatternCustomerByTicket, PatternMappingByThread, PatternMappingByTicket, PatternBotConfig:
		return true
	default:
		return false
	}
}

func (p CachePattern) key(id string) string {
	return fmt.Sprintf("%s:%s", p, id)
}
