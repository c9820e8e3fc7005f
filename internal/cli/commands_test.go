package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crid/internal/registry"
	"github.com/roach88/crid/internal/store"
)

// initDB creates a registry administered by "registrar" with course
// MAB123 of capacity 2.
func initDB(t *testing.T) string {
	t.Helper()
	db := tempDB(t)
	_, err := runCLI(t, db, "init", "--admin", "registrar")
	require.NoError(t, err)
	_, err = runCLI(t, db, "course", "create", "MAB123", "2", "--as", "registrar")
	require.NoError(t, err)
	return db
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func TestInit(t *testing.T) {
	db := tempDB(t)

	out, err := runCLI(t, db, "init", "--admin", "registrar")
	require.NoError(t, err)
	assert.Contains(t, out, "administrator: registrar")

	// Same admin again is a no-op
	_, err = runCLI(t, db, "init", "--admin", "registrar")
	require.NoError(t, err)

	out, err = runCLI(t, db, "admin")
	require.NoError(t, err)
	assert.Equal(t, "registrar\n", out)
}

func TestInit_DifferentAdminRejected(t *testing.T) {
	db := tempDB(t)
	_, err := runCLI(t, db, "init", "--admin", "registrar")
	require.NoError(t, err)

	out, err := runCLI(t, db, "--format", "json", "init", "--admin", "mallory")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ALREADY_EXISTS", resp.Error.Code)
}

func TestInit_MissingAdminRejected(t *testing.T) {
	out, err := runCLI(t, tempDB(t), "init")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [INVALID_ARGUMENT]")
}

func TestUninitializedDatabaseIsCommandError(t *testing.T) {
	db := tempDB(t)
	for _, args := range [][]string{
		{"admin"},
		{"course", "list"},
		{"enroll", "MAB123", "Confirmed", "--as", "u1"},
		{"log"},
		{"verify"},
	} {
		t.Run(strings.Join(args, "_"), func(t *testing.T) {
			_, err := runCLI(t, db, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), "not initialized")
		})
	}
}

func TestCourseCreate(t *testing.T) {
	db := tempDB(t)
	_, err := runCLI(t, db, "init", "--admin", "registrar")
	require.NoError(t, err)

	out, err := runCLI(t, db, "--format", "json", "course", "create", "MAB123", "30", "--as", "registrar")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "req-1", resp.RequestID)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "MAB123", data["code"])
	assert.Equal(t, float64(30), data["max_capacity"])
	assert.Equal(t, float64(30), data["remaining_slots"])
}

func TestCourseCreate_DefaultsCallerToConfiguredAdmin(t *testing.T) {
	db := tempDB(t)
	opts := func() *RootOptions {
		return &RootOptions{Environ: []string{"CRID_ADMIN=registrar"}}
	}

	_, err := runCLIWith(t, opts(), db, "init")
	require.NoError(t, err)
	out, err := runCLIWith(t, opts(), db, "course", "create", "MAB123", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Created course MAB123 with capacity 5")
}

func TestCourseCreate_Rejections(t *testing.T) {
	db := initDB(t)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"non-admin", []string{"course", "create", "CS101", "3", "--as", "alice"}, "UNAUTHORIZED"},
		{"duplicate", []string{"course", "create", "MAB123", "3", "--as", "registrar"}, "ALREADY_EXISTS"},
		{"zero capacity", []string{"course", "create", "CS101", "0", "--as", "registrar"}, "INVALID_ARGUMENT"},
		{"non-numeric capacity", []string{"course", "create", "CS101", "lots", "--as", "registrar"}, "INVALID_ARGUMENT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, db, append([]string{"--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			resp := decodeResponse(t, out)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}

	// Nothing but the setup course exists
	out, err := runCLI(t, db, "course", "list")
	require.NoError(t, err)
	assert.Equal(t, "MAB123\tcapacity=2\tconfirmed=0\tremaining=2\n", out)
}

func TestCourseShowAndSlots(t *testing.T) {
	db := initDB(t)

	out, err := runCLI(t, db, "course", "show", "MAB123")
	require.NoError(t, err)
	assert.Equal(t, "MAB123\tcapacity=2\tconfirmed=0\tremaining=2\n", out)

	out, err = runCLI(t, db, "course", "show", "NOPE")
	require.NoError(t, err)
	assert.Equal(t, "NOPE: no such course\n", out)

	out, err = runCLI(t, db, "course", "slots", "MAB123")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = runCLI(t, db, "course", "slots", "NOPE")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
}

func TestCourseList_Empty(t *testing.T) {
	db := tempDB(t)
	_, err := runCLI(t, db, "init", "--admin", "registrar")
	require.NoError(t, err)

	out, err := runCLI(t, db, "course", "list")
	require.NoError(t, err)
	assert.Equal(t, "No courses.\n", out)

	out, err = runCLI(t, db, "--format", "json", "course", "list")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	assert.Equal(t, []any{}, resp.Data)
}

func TestEnroll_CapacityLifecycle(t *testing.T) {
	db := initDB(t)

	out, err := runCLI(t, db, "enroll", "MAB123", "Confirmed", "--as", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice is Confirmed in MAB123 (1 slots remaining)\n", out)

	_, err = runCLI(t, db, "enroll", "MAB123", "confirmed", "--as", "bob")
	require.NoError(t, err)

	out, err = runCLI(t, db, "--format", "json", "enroll", "MAB123", "Confirmed", "--as", "carol")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp := decodeResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CAPACITY_EXCEEDED", resp.Error.Code)

	// Locking a confirmed enrollment frees a slot for carol
	_, err = runCLI(t, db, "enroll", "MAB123", "Locked", "--as", "alice")
	require.NoError(t, err)
	_, err = runCLI(t, db, "enroll", "MAB123", "Confirmed", "--as", "carol")
	require.NoError(t, err)

	out, err = runCLI(t, db, "enrollment", "list", "MAB123")
	require.NoError(t, err)
	assert.Equal(t,
		"MAB123\talice\tLocked\n"+
			"MAB123\tbob\tConfirmed\n"+
			"MAB123\tcarol\tConfirmed\n", out)

	out, err = runCLI(t, db, "course", "slots", "MAB123")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
}

func TestEnroll_Rejections(t *testing.T) {
	db := initDB(t)
	_, err := runCLI(t, db, "enroll", "MAB123", "Locked", "--as", "dave")
	require.NoError(t, err)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"unknown course", []string{"enroll", "NOPE", "Confirmed", "--as", "alice"}, "COURSE_NOT_FOUND"},
		{"locked is final", []string{"enroll", "MAB123", "Confirmed", "--as", "dave"}, "ILLEGAL_TRANSITION"},
		{"unknown state", []string{"enroll", "MAB123", "Waitlisted", "--as", "alice"}, "INVALID_ARGUMENT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, db, append([]string{"--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			resp := decodeResponse(t, out)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestEnroll_RequiresParticipant(t *testing.T) {
	db := initDB(t)
	_, err := runCLI(t, db, "enroll", "MAB123", "Confirmed")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `"as" not set`)
}

func TestEnrollmentShow_DefaultsToPending(t *testing.T) {
	db := initDB(t)

	out, err := runCLI(t, db, "enrollment", "show", "MAB123", "--as", "nobody")
	require.NoError(t, err)
	assert.Equal(t, "MAB123\tnobody\tPending\n", out)

	_, err = runCLI(t, db, "enroll", "MAB123", "Confirmed", "--as", "alice")
	require.NoError(t, err)

	out, err = runCLI(t, db, "--format", "json", "enrollment", "show", "MAB123", "--as", "alice")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "alice", data["participant"])
	assert.Equal(t, "Confirmed", data["state"])
}

func TestLog(t *testing.T) {
	db := initDB(t)
	_, err := runCLI(t, db, "enroll", "MAB123", "Confirmed", "--as", "alice")
	require.NoError(t, err)

	// Rejections are not logged
	_, err = runCLI(t, db, "enroll", "NOPE", "Confirmed", "--as", "alice")
	require.Error(t, err)

	out, err := runCLI(t, db, "log")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "1\t"))
	assert.Contains(t, lines[0], "CourseCreated\t"+`{"code":"MAB123","max_capacity":2}`)
	assert.Contains(t, lines[1], "EnrollmentChanged\t"+`{"code":"MAB123","participant":"alice","state":"Confirmed"}`)
	assert.Contains(t, lines[1], "request=req-1")

	out, err = runCLI(t, db, "--format", "json", "log", "--after", "1")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	events := resp.Data.([]any)
	require.Len(t, events, 1)
	ev := events[0].(map[string]any)
	assert.Equal(t, float64(2), ev["seq"])
	assert.Equal(t, "EnrollmentChanged", ev["kind"])
	assert.Equal(t, "Confirmed", ev["state"])

	out, err = runCLI(t, db, "--format", "json", "log", "--limit", "1")
	require.NoError(t, err)
	resp = decodeResponse(t, out)
	created := resp.Data.([]any)[0].(map[string]any)
	assert.Equal(t, "CourseCreated", created["kind"])
	assert.NotContains(t, created, "state")
}

func TestLog_ByRequest(t *testing.T) {
	db := initDB(t)
	_, err := runCLI(t, db, "enroll", "MAB123", "Confirmed", "--as", "alice")
	require.NoError(t, err)

	// Each invocation starts its own request sequence, so the course
	// creation and the enrollment both carry "req-1".
	out, err := runCLI(t, db, "--format", "json", "log", "--request", "req-1")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	assert.Len(t, resp.Data.([]any), 2)

	out, err = runCLI(t, db, "log", "--request", "missing")
	require.NoError(t, err)
	assert.Equal(t, "No events.\n", out)
}

func TestVerify(t *testing.T) {
	db := initDB(t)
	_, err := runCLI(t, db, "enroll", "MAB123", "Confirmed", "--as", "alice")
	require.NoError(t, err)

	out, err := runCLI(t, db, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "Events replayed: 2 (last seq 2)")
	assert.Contains(t, out, "Event log matches stored state")
}

func TestVerify_DetectsTampering(t *testing.T) {
	db := initDB(t)
	_, err := runCLI(t, db, "enroll", "MAB123", "Confirmed", "--as", "alice")
	require.NoError(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	_, err = st.DB().Exec(`UPDATE enrollments SET state = ? WHERE participant = 'alice'`, int(registry.Locked))
	require.NoError(t, err)
	_, err = st.DB().Exec(`UPDATE courses SET confirmed_count = 0 WHERE code = 'MAB123'`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := runCLI(t, db, "--format", "json", "verify")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_REPLAY_MISMATCH", resp.Error.Code)
	assert.Contains(t, out, "alice")
}
