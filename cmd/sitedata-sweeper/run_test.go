package main

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/bnema/sitedata-sweeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func collectEvents(t *testing.T, input string) []models.Event {
	t.Helper()
	var out []models.Event
	for ev := range readEvents(context.Background(), strings.NewReader(input), zap.NewNop()) {
		out = append(out, ev)
	}
	return out
}

func TestReadEventsSkipsOversizedLine(t *testing.T) {
	huge := `{"type":"headers_received","url":"https://a.com/` + strings.Repeat("x", maxEventSize+10) + `"}`
	input := huge + "\n" + `{"type":"tab_removed","tabId":7}` + "\n"

	events := collectEvents(t, input)

	require.Len(t, events, 1)
	assert.Equal(t, models.EventTabRemoved, events[0].Type)
	assert.Equal(t, 7, events[0].TabID)
}

func TestReadEventsSkipsMalformedAndBlankLines(t *testing.T) {
	input := "not json\n\n" +
		`{"type":"tab_created","tabId":1,"cookieStoreId":"firefox-default","url":"https://example.com/"}` + "\r\n" +
		`{"type":"startup"}` // no trailing newline

	events := collectEvents(t, input)

	require.Len(t, events, 2)
	assert.Equal(t, "firefox-default", events[0].ContainerID)
	assert.Equal(t, "example.com", events[0].Host())
	assert.Equal(t, models.EventStartup, events[1].Type)
}

func TestReadLine(t *testing.T) {
	br := bufio.NewReaderSize(strings.NewReader("short\r\n"+strings.Repeat("y", 40)+"\nok\n"), 16)

	line, tooLong, err := readLine(br, 20)
	require.NoError(t, err)
	assert.False(t, tooLong)
	assert.Equal(t, "short", string(line))

	line, tooLong, err = readLine(br, 20)
	require.NoError(t, err)
	assert.True(t, tooLong)
	assert.Nil(t, line)

	line, tooLong, err = readLine(br, 20)
	require.NoError(t, err)
	assert.False(t, tooLong)
	assert.Equal(t, "ok", string(line))
}

func TestQueueReloadKeepsLatestSnapshot(t *testing.T) {
	reloads := make(chan reload, 1)

	first := models.Config{FallbackRule: models.CleanupNever, Containers: []string{"a"}}
	second := models.Config{FallbackRule: models.CleanupInstantly, Containers: []string{"b"}}
	queueReload(context.Background(), reloads, first, zap.NewNop())
	queueReload(context.Background(), reloads, second, zap.NewNop())

	require.Len(t, reloads, 1)
	r := <-reloads
	assert.Equal(t, []string{"b"}, r.containers)
	assert.Equal(t, models.CleanupInstantly, r.snapshot.FallbackRule)
}

func TestQueueReloadDropsBrokenConfig(t *testing.T) {
	reloads := make(chan reload, 1)
	broken := models.Config{RulesFile: "/nonexistent/rules.txt"}

	queueReload(context.Background(), reloads, broken, zap.NewNop())

	assert.Empty(t, reloads)
}
