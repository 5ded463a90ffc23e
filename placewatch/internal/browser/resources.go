package browser

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockResources fails requests of the configured resource types on page.
// Reading a place and hosting the panel only needs the document and its
// scripts; the panel brings its own inline stylesheet.
func blockResources(page *rod.Page, types []string) (*rod.HijackRouter, error) {
	blocked := make(map[string]bool, len(types))
	for _, t := range types {
		blocked[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()
	err := router.Add("*", "", func(h *rod.Hijack) {
		if shouldBlock(blocked, string(h.Request.Type())) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return nil, fmt.Errorf("browser: hijack: %w", err)
	}
	go router.Run()
	return router, nil
}

// shouldBlock maps a CDP resource type to its config name.
func shouldBlock(blocked map[string]bool, resType string) bool {
	name := strings.ToLower(resType)
	switch name {
	case "image", "font", "stylesheet":
		name += "s"
	}
	return blocked[name]
}
