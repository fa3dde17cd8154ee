package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/foothold/extension/internal/handlers"
	"github.com/foothold/extension/pkg/hostapi"
)

// Step is one scripted host action at host time At. A step either sends
// Command, presses Keys on the next frame, or both.
type Step struct {
	At      float64
	Command string
	Args    []string
	Keys    []string
}

// Script replays Steps against a gateway while sending one :TICK: per frame.
type Script struct {
	FPS      float64
	Duration float64
	Steps    []Step
}

// defaultScript loads scene, shows the markers, hides them again, then
// switches to fade-away mode and rescans twice.
func defaultScript(scene, key string, seconds, fps float64) Script {
	return Script{
		FPS:      fps,
		Duration: seconds,
		Steps: []Step{
			{At: 0, Command: handlers.CmdSceneLoaded, Args: []string{scene}},
			{At: 0.5, Keys: []string{key}},
			{At: 2.5, Command: handlers.CmdStatus},
			{At: 3, Keys: []string{key}},
			{At: 3.5, Command: handlers.CmdConfigSet, Args: []string{"overlay.mode", "fadeAway"}},
			{At: 4, Keys: []string{key}},
			{At: 5, Command: handlers.CmdStatus},
			{At: 6, Keys: []string{key}},
			{At: 8, Command: handlers.CmdStatus},
		},
	}
}

// Run plays the script. Command replies are echoed to out; a failed tick
// stops the run.
func (s Script) Run(g *hostapi.Gateway, out io.Writer) error {
	if s.FPS <= 0 || math.IsNaN(s.FPS) {
		return fmt.Errorf("invalid frame rate %v", s.FPS)
	}

	steps := make([]Step, len(s.Steps))
	copy(steps, s.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].At < steps[j].At })

	frames := int(math.Ceil(s.Duration * s.FPS))
	next := 0
	for i := 0; i <= frames; i++ {
		now := float64(i) / s.FPS

		var keys []string
		for next < len(steps) && steps[next].At <= now {
			st := steps[next]
			next++
			keys = append(keys, st.Keys...)
			if st.Command == "" {
				continue
			}
			reply := g.Call(st.Command, st.Args...)
			fmt.Fprintf(out, "%7.3f %s\n", now, strings.TrimSpace(st.Command+" "+strings.Join(st.Args, " ")+" -> "+reply))
		}

		args := append([]string{strconv.FormatFloat(now, 'f', -1, 64)}, keys...)
		if reply := g.Call(handlers.CmdTick, args...); isError(reply) {
			return fmt.Errorf("tick at %.3f: %s", now, reply)
		}
		if len(keys) > 0 {
			fmt.Fprintf(out, "%7.3f keys %s\n", now, strings.Join(keys, "+"))
		}
	}
	return nil
}

func isError(reply string) bool {
	return strings.HasPrefix(reply, `["error"`)
}
