// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rescue

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/tablo-rescue/internal/tablodb"
)

func TestMarshalNFO_Episode(t *testing.T) {
	data, err := MarshalNFO(tablodb.Recording{
		ID: 42, Title: "Nova", EpisodeTitle: "Black Holes & Time",
		SeasonNumber: 3, EpisodeNumber: 7, EntityType: "Episode",
		LongDescription: "Gravity.", OrigAirDate: "2019-04-01T00:00Z",
		TopCast: "Alice, Bob,", Channel: tablodb.Channel{CallSign: "WGBH"},
	})
	require.NoError(t, err)

	var doc nfoEpisode
	require.NoError(t, xml.Unmarshal(data, &doc))
	assert.Equal(t, "Black Holes & Time", doc.Title)
	assert.Equal(t, "Nova", doc.ShowTitle)
	assert.Equal(t, int64(3), doc.Season)
	assert.Equal(t, int64(7), doc.Episode)
	assert.Equal(t, "2019-04-01", doc.Aired)
	assert.Equal(t, "WGBH", doc.Studio)
	assert.Equal(t, []nfoActor{{Name: "Alice"}, {Name: "Bob"}}, doc.Actors)
	assert.Equal(t, nfoID{Type: "tablo", Value: "42"}, doc.UniqueID)
	assert.Contains(t, string(data), "Black Holes &amp; Time")
}

func TestMarshalNFO_Movie(t *testing.T) {
	data, err := MarshalNFO(tablodb.Recording{
		ID: 7, Title: "Casablanca", EntityType: "Movie", ShortDescription: "Of all the gin joints.",
		RecordedAt: time.Date(2020, 5, 6, 20, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	var doc nfoMovie
	require.NoError(t, xml.Unmarshal(data, &doc))
	assert.Equal(t, "Casablanca", doc.Title)
	assert.Equal(t, "Of all the gin joints.", doc.Plot)
	assert.Equal(t, "2020-05-06", doc.Premiered)
	assert.Equal(t, []string{"Movie"}, doc.Tags)
}

func TestWriteNFO(t *testing.T) {
	video := filepath.Join(t.TempDir(), "7 Casablanca.ts")

	path, err := WriteNFO(video, tablodb.Recording{ID: 7, Title: "Casablanca"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(video), "7 Casablanca.nfo"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, len(data) > len(xml.Header))
	assert.Equal(t, xml.Header, string(data[:len(xml.Header)]))
}
