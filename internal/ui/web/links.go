// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package web

import (
	"html/template"
	"net/url"
	"strings"
)

// Device is the client platform, as far as product links care.
type Device int

const (
	DeviceOther Device = iota
	DeviceAndroid
	DeviceIOS
)

func (d Device) String() string {
	switch d {
	case DeviceAndroid:
		return "android"
	case DeviceIOS:
		return "ios"
	default:
		return "other"
	}
}

// DetectDevice classifies a User-Agent header.
func DetectDevice(userAgent string) Device {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "android"):
		return DeviceAndroid
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ipod"):
		return DeviceIOS
	default:
		return DeviceOther
	}
}

// Link is where a product card points.
type Link struct {
	Href string
	// Target is "_blank" to open a new tab, empty for the same window.
	Target string
}

// URL returns Href for use in a template attribute. Only http, https and
// intent links pass; anything else becomes "#".
func (l Link) URL() template.URL {
	u, err := url.Parse(l.Href)
	if err != nil {
		return "#"
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "intent":
		return template.URL(l.Href)
	default:
		return "#"
	}
}

const (
	amazonHost    = "amazon.co.uk"
	amazonPackage = "com.amazon.mShop.android.shopping"
)

// ProductLink returns the link for a product card on the given device.
//
// Android gets an intent:// URL that opens the shopping app with the plain
// link as browser fallback. iOS opens in the same window. Everything else
// opens a new tab.
func ProductLink(d Device, productLink string) Link {
	if d == DeviceAndroid && strings.Contains(productLink, "amazon") {
		if _, path, ok := strings.Cut(productLink, amazonHost); ok {
			// Only the segment up to a repeated host is kept.
			path, _, _ = strings.Cut(path, amazonHost)
			return Link{
				Href: "intent://www." + amazonHost + path +
					"#Intent;scheme=https;package=" + amazonPackage +
					";S.browser_fallback_url=" + encodeURIComponent(productLink) + ";end",
			}
		}
	}
	if d == DeviceIOS {
		return Link{Href: productLink}
	}
	return Link{Href: productLink, Target: "_blank"}
}

// encodeURIComponent escapes s like the browser function of the same
// name: only A-Z a-z 0-9 and -_.!~*'() are left as is.
func encodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	return strings.NewReplacer(
		"+", "%20",
		"%21", "!",
		"%27", "'",
		"%28", "(",
		"%29", ")",
		"%2A", "*",
	).Replace(escaped)
}
