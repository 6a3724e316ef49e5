package main

import (
	"testing"

	"soundrelay/internal/ipc"
)

func TestJobDisplayTitle(t *testing.T) {
	cases := []struct {
		name string
		job  ipc.QueueJob
		want string
	}{
		{"artist and title", ipc.QueueJob{Artist: "Burial", Title: "archangel"}, "Burial - Archangel"},
		{"title only", ipc.QueueJob{Title: "around the world"}, "Around The World"},
		{"artist only", ipc.QueueJob{Artist: "Burial"}, "Burial"},
		{"url fallback", ipc.QueueJob{URL: "https://soundcloud.com/a/b"}, "https://soundcloud.com/a/b"},
		{"nothing known", ipc.QueueJob{}, "Unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := jobDisplayTitle(tc.job); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
