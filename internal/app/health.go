package app

import (
	"time"

	"tokenwatch/internal/runtime/supervisor"
)

type healthReport struct {
	Status       string                 `json:"status"`
	State        string                 `json:"state"`
	Target       string                 `json:"target"`
	Schedule     string                 `json:"schedule"`
	Storage      string                 `json:"storage"`
	Seen         int                    `json:"seen"`
	Ticks        uint64                 `json:"ticks"`
	LastTickAt   *time.Time             `json:"last_tick_at,omitempty"`
	LastTickTook string                 `json:"last_tick_took,omitempty"`
	LastFetchErr string                 `json:"last_fetch_error,omitempty"`
	LastMatches  int                    `json:"last_matches"`
	Channels     []string               `json:"channels"`
	Uptime       string                 `json:"uptime"`
	Tasks        []supervisor.TaskStats `json:"tasks,omitempty"`
}

// healthy is false once a supervised task has failed.
func (a *App) healthy() bool {
	return a.sup == nil || a.sup.Err() == nil
}

func (a *App) health() (any, bool) {
	st := a.loop.Status()
	ok := a.healthy()
	r := healthReport{
		Status:       "ok",
		State:        st.State.String(),
		Target:       st.Target,
		Schedule:     a.loop.Schedule().String(),
		Storage:      a.store.Backend(),
		Seen:         a.store.Len(),
		Ticks:        st.Ticks,
		LastFetchErr: st.LastFetchErr,
		LastMatches:  st.LastMatches,
		Channels:     a.dispatcher.Channels(),
		Uptime:       time.Since(a.startedAt).Truncate(time.Second).String(),
	}
	if !ok {
		r.Status = "failing"
	}
	if !st.LastTickAt.IsZero() {
		at := st.LastTickAt.UTC()
		r.LastTickAt = &at
		r.LastTickTook = st.LastTickTook.String()
	}
	if a.sup != nil {
		r.Tasks = a.sup.Snapshot()
	}
	return r, ok
}
