package main

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/bnema/sitedata-sweeper/internal/browsingdata"
	"github.com/bnema/sitedata-sweeper/internal/engine"
	"github.com/bnema/sitedata-sweeper/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var replayCmd = &cobra.Command{
	Use:   "replay <scenario.yaml>",
	Short: "Replay a scripted sequence of browser events and print every decision",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

// Scenario is a scripted event sequence
type Scenario struct {
	// Containers swept by startup events without a container_id
	Containers []string       `yaml:"containers"`
	Events     []models.Event `yaml:"events"`
}

func loadScenario(path string) (Scenario, error) {
	var sc Scenario
	data, err := os.ReadFile(path)
	if err != nil {
		return sc, err
	}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("parsing scenario: %w", err)
	}
	return sc, nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	c, err := loadedConfig()
	if err != nil {
		return err
	}
	sc, err := loadScenario(args[0])
	if err != nil {
		return err
	}

	log, err := commandLogger()
	if err != nil {
		return err
	}

	// replays never touch the persisted pending set
	c.Pending.Path = ""
	rec := &browsingdata.Recorder{}
	e, _, set, err := newEngine(cmd.Context(), c, rec, log)
	if err != nil {
		return err
	}
	defer func() { _ = set.Close() }()

	containers := sc.Containers
	if len(containers) == 0 {
		containers = c.Containers
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Replaying %d events...\n", len(sc.Events))
	for i, ev := range sc.Events {
		rec.Reset()
		res, err := e.Dispatch(ev, containers)
		fmt.Fprintf(out, "\n  [%d] %s%s\n", i+1, ev.Type, describeEvent(ev))
		if err != nil {
			fmt.Fprintf(out, "    ERROR: %v\n", err)
			continue
		}
		printResult(out, res, rec.Requests())
	}

	printOpenDomains(out, e)
	fmt.Fprintf(out, "Pending cleanup: %s\n", listOrNone(e.Pending().Hostnames()))
	return nil
}

func describeEvent(ev models.Event) string {
	var parts []string
	if ev.TabID != 0 {
		parts = append(parts, fmt.Sprintf("tab=%d", ev.TabID))
	}
	if ev.ContainerID != "" {
		parts = append(parts, "container="+ev.ContainerID)
	}
	if host := ev.Host(); host != "" {
		parts = append(parts, "host="+host)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func printResult(out io.Writer, res engine.Result, requests []browsingdata.Request) {
	if res.Response != nil {
		if !res.Response.HasHeaders {
			fmt.Fprintf(out, "    headers: unchanged\n")
		} else {
			names := make([]string, 0, len(res.Response.ResponseHeaders))
			for _, h := range res.Response.ResponseHeaders {
				names = append(names, h.Name)
			}
			fmt.Fprintf(out, "    headers: %s\n", listOrNone(names))
		}
	}
	for _, r := range requests {
		types := slices.Sorted(maps.Keys(r.DataTypes))
		fmt.Fprintf(out, "    remove %s in %s: %s\n",
			strings.Join(types, ","), r.Options.CookieStoreID, strings.Join(r.Options.Hostnames, ", "))
	}
}

func printOpenDomains(out io.Writer, e *engine.Engine) {
	tabs := e.Tabs()
	containers := tabs.Containers()
	if len(containers) == 0 {
		fmt.Fprintf(out, "\nOpen domains: (none)\n")
		return
	}
	fmt.Fprintf(out, "\nOpen domains:\n")
	slices.Sort(containers)
	for _, id := range containers {
		domains := tabs.OpenDomains(id)
		slices.Sort(domains)
		fmt.Fprintf(out, "  %s: %s\n", id, strings.Join(domains, ", "))
	}
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
