// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rescue

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/tablo-rescue/internal/tablodb"
)

// Kodi reads these elements from local .nfo files.
type nfoEpisode struct {
	XMLName   xml.Name   `xml:"episodedetails"`
	Title     string     `xml:"title"`
	ShowTitle string     `xml:"showtitle"`
	Season    int64      `xml:"season,omitempty"`
	Episode   int64      `xml:"episode,omitempty"`
	Plot      string     `xml:"plot,omitempty"`
	Aired     string     `xml:"aired,omitempty"`
	Studio    string     `xml:"studio,omitempty"`
	Actors    []nfoActor `xml:"actor,omitempty"`
	UniqueID  nfoID      `xml:"uniqueid"`
}

type nfoMovie struct {
	XMLName   xml.Name   `xml:"movie"`
	Title     string     `xml:"title"`
	Plot      string     `xml:"plot,omitempty"`
	Outline   string     `xml:"outline,omitempty"`
	Premiered string     `xml:"premiered,omitempty"`
	Studio    string     `xml:"studio,omitempty"`
	Tags      []string   `xml:"tag,omitempty"`
	Actors    []nfoActor `xml:"actor,omitempty"`
	UniqueID  nfoID      `xml:"uniqueid"`
}

type nfoActor struct {
	Name string `xml:"name"`
}

type nfoID struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

// NFOPath is the sidecar location for a video destination.
func NFOPath(videoPath string) string {
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".nfo"
}

// MarshalNFO renders the Kodi sidecar for rec.
func MarshalNFO(rec tablodb.Recording) ([]byte, error) {
	plot := rec.LongDescription
	if plot == "" {
		plot = rec.ShortDescription
	}
	id := nfoID{Type: "tablo", Value: strconv.FormatInt(rec.ID, 10)}
	actors := splitCast(rec.TopCast)

	var doc any
	if rec.IsEpisode() {
		title := rec.EpisodeTitle
		if title == "" {
			title = rec.Title
		}
		doc = nfoEpisode{
			Title:     title,
			ShowTitle: rec.Title,
			Season:    rec.SeasonNumber,
			Episode:   rec.EpisodeNumber,
			Plot:      plot,
			Aired:     airDate(rec),
			Studio:    rec.Channel.CallSign,
			Actors:    actors,
			UniqueID:  id,
		}
	} else {
		var tags []string
		if rec.EntityType != "" {
			tags = append(tags, rec.EntityType)
		}
		doc = nfoMovie{
			Title:     rec.Title,
			Plot:      plot,
			Outline:   rec.ShortDescription,
			Premiered: airDate(rec),
			Studio:    rec.Channel.CallSign,
			Tags:      tags,
			Actors:    actors,
			UniqueID:  id,
		}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode nfo: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// WriteNFO atomically writes the sidecar for rec next to videoPath.
func WriteNFO(videoPath string, rec tablodb.Recording) (string, error) {
	data, err := MarshalNFO(rec)
	if err != nil {
		return "", err
	}
	path := NFOPath(videoPath)
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write nfo: %w", err)
	}
	return path, nil
}

func airDate(rec tablodb.Recording) string {
	if len(rec.OrigAirDate) >= len("2006-01-02") {
		return rec.OrigAirDate[:len("2006-01-02")]
	}
	if !rec.RecordedAt.IsZero() {
		return rec.RecordedAt.Format("2006-01-02")
	}
	return ""
}

func splitCast(cast string) []nfoActor {
	var out []nfoActor
	for _, name := range strings.Split(cast, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, nfoActor{Name: name})
		}
	}
	return out
}
