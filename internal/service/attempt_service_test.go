package service

import (
	"context"
	"testing"
	"time"

	"github.com/evanightly/pedavue-sub000/internal/model"
	"github.com/evanightly/pedavue-sub000/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) completeIntro(t *testing.T) {
	t.Helper()
	_, err := f.attempts.CompleteStage(context.Background(), f.user.ID, f.course.ID, f.contentStage.ID)
	require.NoError(t, err)
}

func (f *fixture) reloadEnrollment(t *testing.T) model.Enrollment {
	t.Helper()
	var enrollment model.Enrollment
	require.NoError(t, f.db.First(&enrollment, f.enrollment.ID).Error)
	return enrollment
}

func TestStageStateLockedUntilPredecessorCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.attempts.StageState(ctx, f.user.ID, f.course.ID, f.quizStage.ID)
	assert.ErrorIs(t, err, util.ErrStageLocked)

	f.completeIntro(t)

	_, err = f.attempts.StageState(ctx, f.user.ID, f.course.ID, f.quizStage.ID)
	assert.NoError(t, err)

	// The closing stage stays locked until the quiz completes too.
	_, err = f.attempts.StageState(ctx, f.user.ID, f.course.ID, f.finalStage.ID)
	assert.ErrorIs(t, err, util.ErrStageLocked)
}

func TestStageStateRejectsUnknownHierarchy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.attempts.StageState(ctx, f.user.ID, 9999, f.contentStage.ID)
	assert.ErrorIs(t, err, util.ErrNotEnrolled)

	_, err = f.attempts.StageState(ctx, f.user.ID, f.course.ID, 9999)
	assert.ErrorIs(t, err, util.ErrStageNotFound)
}

func TestStageStateInitializesQuizAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.completeIntro(t)

	state, err := f.attempts.StageState(ctx, f.user.ID, f.course.ID, f.quizStage.ID)
	require.NoError(t, err)
	require.NotNil(t, state.Quiz)

	assert.Equal(t, model.ProgressInProgress, state.Progress.Status)
	assert.Equal(t, 1, state.Progress.Attempt)
	assert.False(t, state.Progress.ReadOnly)
	require.NotNil(t, state.Progress.StartedAt)
	require.NotNil(t, state.Progress.DeadlineAt)
	assert.Equal(t, state.Progress.StartedAt.Add(10*time.Minute), *state.Progress.DeadlineAt)

	// The reversing shuffler flips the question order and Q1's options;
	// Q2 has shuffling off and keeps its authored order.
	require.Len(t, state.Quiz.Questions, 2)
	assert.Equal(t, f.q2().ID, state.Quiz.Questions[0].ID)
	assert.Equal(t, f.q1().ID, state.Quiz.Questions[1].ID)
	assert.Equal(t, []uint{f.q2().Options[0].ID, f.q2().Options[1].ID, f.q2().Options[2].ID},
		optionIDs(state.Quiz.Questions[0]))
	assert.Equal(t, []uint{f.q1().Options[1].ID, f.q1().Options[0].ID},
		optionIDs(state.Quiz.Questions[1]))

	// Correctness never leaks.
	assert.Equal(t, model.SelectMultiple, state.Quiz.Questions[0].SelectionMode)
	assert.Equal(t, model.SelectSingle, state.Quiz.Questions[1].SelectionMode)
}

func optionIDs(q QuestionPayload) []uint {
	ids := make([]uint, 0, len(q.Options))
	for _, o := range q.Options {
		ids = append(ids, o.ID)
	}
	return ids
}

func TestStageStateStableAcrossRenders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.completeIntro(t)

	first, err := f.attempts.StageState(ctx, f.user.ID, f.course.ID, f.quizStage.ID)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)

	second, err := f.attempts.StageState(ctx, f.user.ID, f.course.ID, f.quizStage.ID)
	require.NoError(t, err)

	// Same attempt: same order, same start, same deadline.
	assert.Equal(t, first.Quiz.Questions, second.Quiz.Questions)
	assert.True(t, first.Progress.StartedAt.Equal(*second.Progress.StartedAt))
	assert.True(t, first.Progress.DeadlineAt.Equal(*second.Progress.DeadlineAt))
	assert.Equal(t, first.Progress.Attempt, second.Progress.Attempt)
}

func TestSaveDraftSanitizesAndPromotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.completeIntro(t)

	raw := map[uint][]uint{
		f.q1().ID: {f.q1().Options[0].ID, f.q1().Options[0].ID, 9999},
		9999:      {1},
	}
	require.NoError(t, f.attempts.SaveDraft(ctx, f.user.ID, f.course.ID, f.quizStage.ID, raw))

	progress, err := f.progressRepo.FindByEnrollmentAndStage(f.enrollment.ID, f.quizStage.ID)
	require.NoError(t, err)
	require.NotNil(t, progress)

	assert.Equal(t, model.ProgressInProgress, progress.Status)
	assert.NotNil(t, progress.StartedAt)
	assert.Equal(t, map[uint][]uint{f.q1().ID: {f.q1().Options[0].ID}}, progress.State.Answers)

	// Last write wins, including clearing a selection.
	require.NoError(t, f.attempts.SaveDraft(ctx, f.user.ID, f.course.ID, f.quizStage.ID,
		map[uint][]uint{f.q2().ID: {f.q2().Options[0].ID}}))

	progress, err = f.progressRepo.FindByEnrollmentAndStage(f.enrollment.ID, f.quizStage.ID)
	require.NoError(t, err)
	assert.Equal(t, map[uint][]uint{f.q2().ID: {f.q2().Options[0].ID}}, progress.State.Answers)
}

func TestSaveDraftRejectsContentStage(t *testing.T) {
	f := newFixture(t)

	err := f.attempts.SaveDraft(context.Background(), f.user.ID, f.course.ID, f.contentStage.ID, nil)
	assert.ErrorIs(t, err, util.ErrNotQuizStage)
}

func TestSubmitGradesAndRecordsResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.completeIntro(t)

	state, grade, err := f.attempts.Submit(ctx, f.user.ID, f.course.ID, f.quizStage.ID, f.partialAnswers(), false)
	require.NoError(t, err)

	assert.Equal(t, 67, grade.Score)
	assert.Equal(t, 10, grade.EarnedPoints)
	assert.Equal(t, 15, grade.TotalPoints)

	assert.Equal(t, model.ProgressCompleted, state.Progress.Status)
	assert.True(t, state.Progress.ReadOnly)
	require.NotNil(t, state.Progress.Result)
	assert.Equal(t, 1, state.Progress.Result.Attempt)
	assert.False(t, state.Progress.Result.AutoSubmitted)
	require.Len(t, state.Progress.AttemptHistory, 1)

	results, err := f.resultRepo.ListByUserAndQuiz(f.user.ID, f.quiz.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Attempt)
	assert.Equal(t, 67, results[0].Score)
	assert.False(t, results[0].AutoSubmitted)
	assert.NotNil(t, results[0].FinishedAt)
}

func TestSubmitDuplicateReturnsStoredResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.completeIntro(t)

	_, first, err := f.attempts.Submit(ctx, f.user.ID, f.course.ID, f.quizStage.ID, f.partialAnswers(), false)
	require.NoError(t, err)

	// A second submit with better answers must not re-grade.
	state, second, err := f.attempts.Submit(ctx, f.user.ID, f.course.ID, f.quizStage.ID, f.correctAnswers(), false)
	require.NoError(t, err)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, 67, second.Score)
	require.Len(t, state.Progress.AttemptHistory, 1)

	results, err := f.resultRepo.ListByUserAndQuiz(f.user.ID, f.quiz.ID)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestDeadlineAutoSubmitsDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.completeIntro(t)

	require.NoError(t, f.attempts.SaveDraft(ctx, f.user.ID, f.course.ID, f.quizStage.ID, f.partialAnswers()))

	// One minute past the 10-minute limit: the next render finalizes
	// with the draft answers.
	f.clock.Advance(11 * time.Minute)

	state, err := f.attempts.StageState(ctx, f.user.ID, f.course.ID, f.quizStage.ID)
	require.NoError(t, err)

	assert.Equal(t, model.ProgressCompleted, state.Progress.Status)
	require.NotNil(t, state.Progress.Result)
	assert.Equal(t, 67, state.Progress.Result.Score)
	assert.True(t, state.Progress.Result.AutoSubmitted)

	results, err := f.resultRepo.ListByUserAndQuiz(f.user.ID, f.quiz.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].AutoSubmitted)
}

func TestReattemptResetsStateKeepsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.completeIntro(t)

	_, _, err := f.attempts.Submit(ctx, f.user.ID, f.course.ID, f.quizStage.ID, f.partialAnswers(), false)
	require.NoError(t, err)

	state, err := f.attempts.Reattempt(ctx, f.user.ID, f.course.ID, f.quizStage.ID)
	require.NoError(t, err)

	assert.Equal(t, model.ProgressInProgress, state.Progress.Status)
	assert.Equal(t, 2, state.Progress.Attempt)
	assert.Empty(t, state.Progress.Answers)
	assert.Nil(t, state.Progress.Result)
	assert.False(t, state.Progress.ReadOnly)
	require.Len(t, state.Progress.AttemptHistory, 1)
	assert.Equal(t, 1, state.Progress.AttemptHistory[0].Attempt)

	_, grade, err := f.attempts.Submit(ctx, f.user.ID, f.course.ID, f.quizStage.ID, f.correctAnswers(), false)
	require.NoError(t, err)
	assert.Equal(t, 100, grade.Score)

	results, err := f.resultRepo.ListByUserAndQuiz(f.user.ID, f.quiz.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Attempt)
	assert.Equal(t, 2, results[1].Attempt)

	progress, err := f.progressRepo.FindByEnrollmentAndStage(f.enrollment.ID, f.quizStage.ID)
	require.NoError(t, err)
	require.Len(t, progress.State.AttemptHistory, 2)
}

func TestCompleteStageContentOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	state, err := f.attempts.CompleteStage(ctx, f.user.ID, f.course.ID, f.contentStage.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProgressCompleted, state.Progress.Status)

	// Idempotent: the completion timestamp does not move.
	firstCompleted := *state.Progress.CompletedAt
	f.clock.Advance(time.Hour)
	state, err = f.attempts.CompleteStage(ctx, f.user.ID, f.course.ID, f.contentStage.ID)
	require.NoError(t, err)
	assert.True(t, firstCompleted.Equal(*state.Progress.CompletedAt))

	// Quiz stages only complete through finalization.
	_, err = f.attempts.CompleteStage(ctx, f.user.ID, f.course.ID, f.quizStage.ID)
	assert.ErrorIs(t, err, util.ErrNotContentStage)
}

func TestEnrollmentSyncAndCertificate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.completeIntro(t)
	assert.Equal(t, 33, f.reloadEnrollment(t).ProgressPercent)

	_, _, err := f.attempts.Submit(ctx, f.user.ID, f.course.ID, f.quizStage.ID, f.correctAnswers(), false)
	require.NoError(t, err)
	assert.Equal(t, 67, f.reloadEnrollment(t).ProgressPercent)

	_, err = f.attempts.CompleteStage(ctx, f.user.ID, f.course.ID, f.finalStage.ID)
	require.NoError(t, err)

	enrollment := f.reloadEnrollment(t)
	assert.Equal(t, 100, enrollment.ProgressPercent)
	require.NotNil(t, enrollment.CompletedAt)

	// 15 quiz points earned against the course threshold of 12.
	assert.NotEmpty(t, enrollment.CertificateSerial)
}

func TestCertificateWithheldBelowThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.completeIntro(t)
	_, _, err := f.attempts.Submit(ctx, f.user.ID, f.course.ID, f.quizStage.ID, f.partialAnswers(), false)
	require.NoError(t, err)
	_, err = f.attempts.CompleteStage(ctx, f.user.ID, f.course.ID, f.finalStage.ID)
	require.NoError(t, err)

	enrollment := f.reloadEnrollment(t)
	assert.Equal(t, 100, enrollment.ProgressPercent)
	require.NotNil(t, enrollment.CompletedAt)

	// 10 of 12 required quiz points: complete but no certificate.
	assert.Empty(t, enrollment.CertificateSerial)
}
