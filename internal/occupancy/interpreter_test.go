package occupancy

import (
	"errors"
	"testing"
	"time"

	"room-monitor/internal/models"
	"room-monitor/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, 5, 14, 8, 15, 42, 0, time.Local)

func newTestInterpreter(opts ...Option) (*Interpreter, *models.Property) {
	property := models.NewProperty()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewInterpreter(property, zap.NewNop(), opts...), property
}

func occupancy(v bool) signal.Signal { return signal.Digital{ID: signal.OccupancyDetected, Value: v} }
func vacancy(v bool) signal.Signal   { return signal.Digital{ID: signal.VacancyDetected, Value: v} }
func location(name string) signal.Signal {
	return signal.Serial{ID: signal.MotionLocation, Value: name}
}

func handleAll(t *testing.T, i *Interpreter, sigs ...signal.Signal) []Result {
	t.Helper()
	results := make([]Result, 0, len(sigs))
	for _, s := range sigs {
		r, err := i.Handle(s)
		require.NoError(t, err, s.String())
		results = append(results, r)
	}
	return results
}

func TestInterpreter_OccupiedEpisode(t *testing.T) {
	i, property := newTestInterpreter()

	results := handleAll(t, i, occupancy(true), location("Lobby"), occupancy(false))

	assert.Equal(t, ActionOpened, results[0].Action)
	assert.Equal(t, ActionNamed, results[1].Action)
	assert.Equal(t, ActionCommitted, results[2].Action)
	assert.True(t, results[2].Publish)
	assert.Equal(t, StateIdle, i.State())

	room, err := property.GetRoom("Lobby")
	require.NoError(t, err)
	assert.Equal(t, "Lobby", room.Name)
	assert.True(t, room.Occupied)
	assert.True(t, room.LastOccupied.Time().Equal(fixedNow))
	assert.Equal(t, room, results[2].Room)
}

func TestInterpreter_VacantEpisode_DoesNotPublish(t *testing.T) {
	i, property := newTestInterpreter()

	results := handleAll(t, i, vacancy(true), location("Office"), vacancy(false))

	last := results[len(results)-1]
	assert.Equal(t, ActionCommitted, last.Action)
	assert.False(t, last.Publish)

	room, err := property.GetRoom("Office")
	require.NoError(t, err)
	assert.False(t, room.Occupied)
	assert.True(t, room.LastOccupied.Time().IsZero())
}

func TestInterpreter_VacantEpisode_PublishOnVacancyOption(t *testing.T) {
	i, _ := newTestInterpreter(WithPublishOnVacancy(true))

	results := handleAll(t, i, vacancy(true), location("Office"), vacancy(false))
	assert.True(t, results[2].Publish)
}

func TestInterpreter_StateTransitions(t *testing.T) {
	i, _ := newTestInterpreter()
	assert.Equal(t, StateIdle, i.State())

	handleAll(t, i, occupancy(true))
	assert.Equal(t, StateOccupiedEpisodeOpen, i.State())

	handleAll(t, i, location("Lobby"))
	assert.Equal(t, StateOccupiedEpisodeOpen, i.State())

	handleAll(t, i, vacancy(true))
	assert.Equal(t, StateVacantEpisodeOpen, i.State())

	handleAll(t, i, location("Lobby"), vacancy(false))
	assert.Equal(t, StateIdle, i.State())
}

func TestInterpreter_VacancyReplacesOccupiedRoom(t *testing.T) {
	i, property := newTestInterpreter()

	handleAll(t, i,
		occupancy(true), location("Lobby"), occupancy(false),
		vacancy(true), location("Lobby"), vacancy(false),
	)

	assert.Equal(t, 1, property.Len())
	room, err := property.GetRoom("Lobby")
	require.NoError(t, err)
	assert.False(t, room.Occupied)
}

func TestInterpreter_NewEpisodeDiscardsUnfinished(t *testing.T) {
	i, property := newTestInterpreter()

	handleAll(t, i, occupancy(true), location("Kitchen"))
	// 未提交的 Kitchen 被丢弃
	handleAll(t, i, vacancy(true), location("Lobby"), vacancy(false))

	assert.Equal(t, 1, property.Len())
	_, err := property.GetRoom("Kitchen")
	assert.True(t, errors.Is(err, models.ErrRoomNotFound))

	room, err := property.GetRoom("Lobby")
	require.NoError(t, err)
	assert.False(t, room.Occupied)
}

func TestInterpreter_NewEpisodeWithoutNameIsNotMerged(t *testing.T) {
	i, property := newTestInterpreter()

	handleAll(t, i, occupancy(true), location("Kitchen"), occupancy(true))

	_, err := i.Handle(occupancy(false))
	assert.True(t, errors.Is(err, ErrUnnamedRoom))
	assert.Equal(t, 0, property.Len())
}

func TestInterpreter_MotionLocationWithoutEpisode(t *testing.T) {
	i, property := newTestInterpreter()

	result, err := i.Handle(location("Lobby"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoOpenEpisode))
	assert.Equal(t, ActionIgnored, result.Action)
	assert.Equal(t, StateIdle, i.State())
	assert.Equal(t, 0, property.Len())

	// 之后的正常过程不受影响
	handleAll(t, i, occupancy(true), location("Kitchen"), occupancy(false))
	assert.Equal(t, 1, property.Len())
	_, err = property.GetRoom("Kitchen")
	assert.NoError(t, err)
}

func TestInterpreter_CommitWithoutEpisode(t *testing.T) {
	i, property := newTestInterpreter()

	_, err := i.Handle(occupancy(false))
	assert.True(t, errors.Is(err, ErrNoOpenEpisode))

	_, err = i.Handle(vacancy(false))
	assert.True(t, errors.Is(err, ErrNoOpenEpisode))
	assert.Equal(t, 0, property.Len())
}

func TestInterpreter_CommitUnnamedRoomRejected(t *testing.T) {
	i, property := newTestInterpreter()

	handleAll(t, i, occupancy(true))
	result, err := i.Handle(occupancy(false))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnnamedRoom))
	assert.Equal(t, ActionIgnored, result.Action)
	assert.False(t, result.Publish)
	assert.Equal(t, StateIdle, i.State())
	assert.Equal(t, 0, property.Len())

	_, err = property.GetRoom("")
	assert.True(t, errors.Is(err, models.ErrRoomNotFound))
}

func TestInterpreter_LastLocationWins(t *testing.T) {
	i, property := newTestInterpreter()

	handleAll(t, i, occupancy(true), location("Hall"), location("Lobby"), occupancy(false))

	assert.Equal(t, 1, property.Len())
	_, err := property.GetRoom("Lobby")
	assert.NoError(t, err)
}

func TestInterpreter_ClosingSignalCommitsAnyOpenEpisode(t *testing.T) {
	i, property := newTestInterpreter()

	results := handleAll(t, i, vacancy(true), location("Lobby"), occupancy(false))

	assert.True(t, results[2].Publish)
	room, err := property.GetRoom("Lobby")
	require.NoError(t, err)
	assert.False(t, room.Occupied)
}

func TestInterpreter_UnrelatedSignalsIgnored(t *testing.T) {
	i, property := newTestInterpreter()

	handleAll(t, i, occupancy(true), location("Lobby"))

	for _, s := range []signal.Signal{
		signal.Digital{ID: signal.Lamp1OnFB, Value: true},
		signal.Digital{ID: 200, Value: false},
		signal.Analog{ID: signal.LocalTempFBScaled, Value: 720},
		signal.Serial{ID: signal.UnitName, Value: "Thermostat"},
		signal.Serial{ID: 99, Value: "?"},
	} {
		result, err := i.Handle(s)
		require.NoError(t, err)
		assert.Equal(t, ActionIgnored, result.Action)
	}

	assert.Equal(t, StateOccupiedEpisodeOpen, i.State())
	assert.Equal(t, 0, property.Len())

	handleAll(t, i, occupancy(false))
	_, err := property.GetRoom("Lobby")
	assert.NoError(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "occupied_episode_open", StateOccupiedEpisodeOpen.String())
	assert.Equal(t, "vacant_episode_open", StateVacantEpisodeOpen.String())
	assert.Equal(t, "state(7)", State(7).String())
}
