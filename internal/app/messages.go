package app

import (
	"fmt"
	"time"

	"github.com/brensch/packgrab/internal/progress"
)

// StatusMsg updates the row for one pack id.
type StatusMsg struct {
	ID     int
	Status progress.Status
	Detail string // failure cause when Status is failed
	At     time.Time
}

// DoneMsg tells the view the run is over. Summary is shown in the last frame.
type DoneMsg struct {
	Summary string
}

func NewStatus(id int, status progress.Status, detail string) StatusMsg {
	return StatusMsg{ID: id, Status: status, Detail: detail, At: time.Now()}
}

func (s StatusMsg) String() string {
	return fmt.Sprintf("Status %d: %s", s.ID, s.Status)
}

func (d DoneMsg) String() string { return "Done" }
