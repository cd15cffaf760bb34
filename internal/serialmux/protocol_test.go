package serialmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lanekeep/internal/lane/l5state"
	"github.com/banshee-data/lanekeep/internal/lane/l6geometry"
	"github.com/banshee-data/lanekeep/internal/lane/pipeline"
)

func TestFormatGuidance(t *testing.T) {
	tests := []struct {
		name string
		res  pipeline.Result
		want string
	}{
		{
			name: "within lanes turning left",
			res: pipeline.Result{
				State:   l5state.WithinLanes,
				Turning: &l6geometry.Turning{Percentage: -35},
			},
			want: "G,0,0,-35,",
		},
		{
			name: "changing lanes with hint and give way",
			res: pipeline.Result{
				State:   l5state.ChangingLanes,
				GiveWay: true,
				Hint:    l6geometry.HintTurningRight,
			},
			want: "G,1,1,,R",
		},
		{
			name: "changing lanes not turning",
			res:  pipeline.Result{State: l5state.ChangingLanes, Hint: l6geometry.HintNotTurning},
			want: "G,1,0,,S",
		},
		{
			name: "no markings",
			res:  pipeline.Result{State: l5state.NoMarkings},
			want: "G,4,0,,",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatGuidance(tt.res))
		})
	}
}

func TestParseGuidance(t *testing.T) {
	g, err := ParseGuidance("G,0,1,-35,")
	require.NoError(t, err)
	assert.Equal(t, l5state.WithinLanes, g.State)
	assert.True(t, g.GiveWay)
	require.NotNil(t, g.Percentage)
	assert.Equal(t, -35, *g.Percentage)
	assert.Equal(t, HintCodeNone, g.HintCode)

	g, err = ParseGuidance("G,1,0,,L\n")
	require.NoError(t, err)
	assert.Equal(t, l5state.ChangingLanes, g.State)
	assert.Nil(t, g.Percentage)
	assert.Equal(t, HintCodeLeft, g.HintCode)

	for _, bad := range []string{
		"",
		"OK",
		"G,0,0,0",
		"X,0,0,0,S",
		"G,7,0,,",
		"G,a,0,,",
		"G,0,2,,",
		"G,0,0,x,",
		"G,0,0,,Q",
	} {
		_, err := ParseGuidance(bad)
		assert.Error(t, err, "line %q", bad)
	}
}

func TestParseReply(t *testing.T) {
	r, err := ParseReply("OK\r")
	require.NoError(t, err)
	assert.Equal(t, ReplyAck, r.Kind)

	r, err = ParseReply("ERR bad field")
	require.NoError(t, err)
	assert.Equal(t, ReplyError, r.Kind)
	assert.Equal(t, "bad field", r.Message)

	r, err = ParseReply(`{"firmware":"2.1.0","brightness":80,"lines":12,"errors":1}`)
	require.NoError(t, err)
	assert.Equal(t, ReplyStatus, r.Kind)
	assert.Equal(t, &StatusReport{Firmware: "2.1.0", Brightness: 80, Lines: 12, Errors: 1}, r.Status)

	r, err = ParseReply("{broken")
	assert.Error(t, err)
	assert.Equal(t, ReplyUnknown, r.Kind)

	r, err = ParseReply("hello")
	require.NoError(t, err)
	assert.Equal(t, ReplyUnknown, r.Kind)
	assert.Equal(t, "hello", r.Message)
	assert.Equal(t, "unknown", r.Kind.String())
}
