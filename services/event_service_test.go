package services

import (
	"context"
	"testing"

	"github.com/anjiri1684/smartscore/models"
	"github.com/anjiri1684/smartscore/testutil"
	"github.com/anjiri1684/smartscore/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []websocket.Event
}

func (p *recordingPublisher) Publish(e websocket.Event) bool {
	p.events = append(p.events, e)
	return true
}

func TestNotifySubmissionCreatedTargetsGradeTeachers(t *testing.T) {
	db := testutil.NewDB(t)
	f := seedGrade(t, db, "BTech")
	seedGrade(t, db, "MBA")
	sub := testutil.CreateSubmission(t, db, f.exam, f.student.ID)

	pub := &recordingPublisher{}
	NotifySubmissionCreated(context.Background(), db, pub, f.grade.ID, &sub)

	require.Len(t, pub.events, 1)
	event := pub.events[0]
	assert.Equal(t, websocket.EventSubmissionCreated, event.Type)
	assert.Equal(t, []uuid.UUID{f.teacher.ID}, event.RecipientIDs)
	payload := event.Payload.(map[string]interface{})
	assert.Equal(t, sub.ID, payload["submissionId"])
	assert.Equal(t, 8, payload["totalScore"])
}

func TestNotifyResultsToggledTargetsGradeStudents(t *testing.T) {
	db := testutil.NewDB(t)
	f := seedGrade(t, db, "BTech")
	seedGrade(t, db, "MBA")
	second := testutil.CreateUser(t, db, models.RoleStudent, "second@school.test", &f.grade.ID)

	exam, err := ToggleResults(context.Background(), db, f.exam.ID)
	require.NoError(t, err)

	pub := &recordingPublisher{}
	NotifyResultsToggled(context.Background(), db, pub, exam)

	require.Len(t, pub.events, 1)
	event := pub.events[0]
	assert.Equal(t, websocket.EventResultsToggled, event.Type)
	assert.ElementsMatch(t, []uuid.UUID{f.student.ID, second.ID}, event.RecipientIDs)
	assert.Equal(t, true, event.Payload.(map[string]interface{})["resultsReleased"])
}
