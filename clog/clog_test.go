package clog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct{ lines []string }

func (r *recorder) Infof(format string, args ...interface{}) {
	r.lines = append(r.lines, "I "+fmt.Sprintf(format, args...))
}
func (r *recorder) Warningf(format string, args ...interface{}) {
	r.lines = append(r.lines, "W "+fmt.Sprintf(format, args...))
}
func (r *recorder) Errorf(format string, args ...interface{}) {
	r.lines = append(r.lines, "E "+fmt.Sprintf(format, args...))
}
func (r *recorder) Fatalf(format string, args ...interface{}) {
	r.lines = append(r.lines, "F "+fmt.Sprintf(format, args...))
}

func TestLogger(t *testing.T) {
	r := &recorder{}
	prev := Current()
	SetLogger(r)
	defer SetLogger(prev)
	defer SetV(0)

	Infof("a %d", 1)
	Warningf("b")
	Errorf("c")
	Debugf("hidden")
	SetV(2)
	Debugf("shown")
	require.Equal(t, []string{"I a 1", "W b", "E c", "I shown"}, r.lines)
	require.True(t, V(1))
	require.False(t, V(3))
	require.Equal(t, Logger(r), Current())
}
