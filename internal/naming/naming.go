// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package naming derives portable output file names for recordings.
package naming

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/ManuGH/tablo-rescue/internal/tablodb"
)

// MaxNameBytes leaves room for an extension and a renameio temp suffix
// within the 255 byte limit of common filesystems.
const MaxNameBytes = 200

// hdThreshold is the vertical resolution above which a recording is HD.
const hdThreshold = 480

// illegal holds characters Windows refuses in file names.
const illegal = `<>:"/\|?*`

// FileName returns the base name (without extension) for rec:
//
//	<id> <title> - sNNeNN - <episode title> - [<entity> <sub type>] [HDRip|TVRip]
//
// Series fields are only used for episodes; empty parts are left out.
func FileName(rec tablodb.Recording) string {
	parts := []string{strings.TrimSpace(fmt.Sprintf("%d %s", rec.ID, rec.Title))}

	if rec.IsEpisode() {
		if se := SeasonEpisode(rec.SeasonNumber, rec.EpisodeNumber); se != "" {
			parts = append(parts, se)
		}
		if ep := strings.TrimSpace(rec.EpisodeTitle); ep != "" {
			parts = append(parts, ep)
		}
	}

	if kind := strings.TrimSpace(rec.EntityType + " " + rec.SubType); kind != "" {
		parts = append(parts, "["+kind+"]")
	}

	name := strings.Join(parts, " - ") + " [" + RipTag(rec.Channel.ResolutionTitle) + "]"
	return Sanitize(name)
}

// SeasonEpisode formats the sNNeNN tag; zero values are omitted.
func SeasonEpisode(season, episode int64) string {
	var b strings.Builder
	if season > 0 {
		fmt.Fprintf(&b, "s%02d", season)
	}
	if episode > 0 {
		fmt.Fprintf(&b, "e%02d", episode)
	}
	return b.String()
}

// RipTag returns HDRip when the resolution title starts with a line count
// above 480, TVRip otherwise.
func RipTag(resolutionTitle string) string {
	digits := strings.TrimSpace(resolutionTitle)
	end := strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' })
	if end >= 0 {
		digits = digits[:end]
	}
	if n, err := strconv.Atoi(digits); err == nil && n > hdThreshold {
		return "HDRip"
	}
	return "TVRip"
}

// Sanitize makes name safe on common filesystems: NFC normalised, illegal
// and control characters replaced by '_', no trailing dots or spaces, and
// at most MaxNameBytes long.
func Sanitize(name string) string {
	name = norm.NFC.String(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == utf8.RuneError, unicode.IsControl(r), strings.ContainsRune(illegal, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()

	if len(out) > MaxNameBytes {
		cut := MaxNameBytes
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}

	out = strings.TrimRight(out, ". ")
	if out == "" {
		return "_"
	}
	return out
}
