package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/server"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/terminal"
)

func statusRows(list []server.Status) [][]string {
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		state, since := "INACTIVE", "-"
		if s.Running {
			state = "ACTIVE"
			since = time.UnixMilli(s.OnlineTime).Format(time.DateTime)
		}
		rows = append(rows, []string{s.Key, s.Name, state, fmt.Sprint(len(s.Workers)), since})
	}
	return rows
}

var statusHeaders = []string{"Key", "Name", "State", "Workers", "Since"}

// Status prints one or all services of a running daemon
func Status(w io.Writer, c *APIClient, key string) error {
	var list []server.Status
	if key != "" {
		s, err := c.Service(key)
		if err != nil {
			return err
		}
		list = append(list, s)
	} else {
		all, err := c.Services()
		if err != nil {
			return err
		}
		list = all
	}
	terminal.PrintTable(w, statusHeaders, statusRows(list))
	return nil
}

// Start starts one or all services
func Start(w io.Writer, c *APIClient, key string, all bool) error {
	if all {
		if err := c.All("start"); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w, "Started all services")
		return nil
	}
	s, err := c.Transition(key, "start")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "Service %s is now started\n", s.Key)
	return nil
}

// Stop stops one or all services
func Stop(w io.Writer, c *APIClient, key string, all, force bool) error {
	if all {
		if err := c.All("stop"); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w, "Stopped all services")
		return nil
	}
	op := "stop"
	if force {
		op = "force-stop"
	}
	s, err := c.Transition(key, op)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "Service %s is now stopped (%s)\n", s.Key, strings.ReplaceAll(op, "-", " "))
	return nil
}
