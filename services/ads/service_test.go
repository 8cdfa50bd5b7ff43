package ads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"fogsly/pkg/featureflags"
	"fogsly/pkg/taskname"
	"fogsly/services/earnings"
	"fogsly/services/settings"
	"fogsly/services/testutil"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type staticSettings struct {
	value settings.FogCoinSettings
}

func (s staticSettings) GetFogCoinSettings(ctx context.Context) (*settings.FogCoinSettings, error) {
	v := s.value
	return &v, nil
}

type enqueuerMock struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (e *enqueuerMock) Enqueue(ctx context.Context, t *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, t)
	return &asynq.TaskInfo{Type: t.Type()}, nil
}

type storageMock struct {
	paths []string
	err   error
}

func (s *storageMock) Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	s.paths = append(s.paths, objectPath)
	return "https://cdn.test/" + objectPath, nil
}

func (s *storageMock) Remove(ctx context.Context, objectPath string) error { return nil }

type fixture struct {
	svc      *Service
	earnings *earnings.Service
	db       *gorm.DB
	enqueuer *enqueuerMock
	storage  *storageMock
}

type fixtureOption func(*ServiceParams, *settings.FogCoinSettings)

func withDailyCap(v string) fixtureOption {
	return func(_ *ServiceParams, s *settings.FogCoinSettings) {
		s.MaximumDailyEarnings = decimal.RequireFromString(v)
	}
}

func withFlags(flags featureflags.FeatureFlag) fixtureOption {
	return func(p *ServiceParams, _ *settings.FogCoinSettings) {
		p.Flags = flags
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t,
		&Ad{}, &AdQuestion{}, &UserAdInteraction{}, &UserAdStats{}, &UserDailyActivity{},
		&earnings.UserEarning{}, &earnings.EarningEntry{},
	)
	node := testutil.NewTestNode(t)

	cfg := settings.Defaults()
	params := ServiceParams{DB: db, Node: node}
	for _, opt := range opts {
		opt(&params, &cfg)
	}

	reader := staticSettings{value: cfg}
	ledger := earnings.NewService(earnings.ServiceParams{DB: db, Node: node, Settings: reader})

	enqueuer := &enqueuerMock{}
	storage := &storageMock{}
	params.Earnings = ledger
	params.Settings = reader
	params.Enqueuer = enqueuer
	params.Storage = storage

	return &fixture{
		svc:      NewService(params),
		earnings: ledger,
		db:       db,
		enqueuer: enqueuer,
		storage:  storage,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

// quizParams is an ad worth 7: three multiple choice questions at 2 and feedback at 1.
func quizParams(title string) CreateAdParams {
	return CreateAdParams{
		Title:       title,
		TotalReward: dec("7"),
		IsActive:    true,
		Questions: []QuestionParams{
			{Kind: KindMultipleChoice, Prompt: "Colour of the logo?", Options: []string{"Blue", "Green"}, CorrectAnswer: "Blue", RewardShare: dec("2")},
			{Kind: KindMultipleChoice, Prompt: "Product name?", Options: []string{"Fogsly", "Other"}, CorrectAnswer: "Fogsly", RewardShare: dec("2")},
			{Kind: KindMultipleChoice, Prompt: "Launch year?", Options: []string{"2024", "2025"}, CorrectAnswer: "2025", RewardShare: dec("2")},
			{Kind: KindFeedback, Prompt: "What did you think?", RewardShare: dec("1")},
		},
	}
}

func (f *fixture) createAd(t *testing.T, title string) *Ad {
	t.Helper()
	ad, err := f.svc.CreateAd(context.Background(), quizParams(title))
	require.NoError(t, err)
	return ad
}

func correctAnswers(ad *Ad) []Answer {
	out := make([]Answer, 0, len(ad.Questions))
	for _, q := range ad.Questions {
		switch q.Kind {
		case KindMultipleChoice:
			out = append(out, Answer{QuestionID: q.ID, Answer: "  " + q.CorrectAnswer + " "})
		case KindFeedback:
			out = append(out, Answer{QuestionID: q.ID, Answer: "great ad"})
		}
	}
	return out
}

func TestScore(t *testing.T) {
	questions := []AdQuestion{
		{ID: "q1", Kind: KindMultipleChoice, CorrectAnswer: "Blue", RewardShare: dec("2")},
		{ID: "q2", Kind: KindMultipleChoice, CorrectAnswer: "Fogsly", RewardShare: dec("2")},
		{ID: "q3", Kind: KindFeedback, RewardShare: dec("1")},
	}

	tests := []struct {
		name    string
		answers []Answer
		correct int
		reward  string
	}{
		{"all correct ignoring surrounding spaces", []Answer{{"q1", " Blue "}, {"q2", "Fogsly\n"}, {"q3", "nice"}}, 3, "5"},
		{"choice must match case", []Answer{{"q1", "blue"}, {"q2", "FOGSLY"}, {"q3", "nice"}}, 1, "1"},
		{"blank feedback earns nothing", []Answer{{"q1", "Blue"}, {"q2", "Fogsly"}, {"q3", "   "}}, 2, "4"},
		{"wrong choice", []Answer{{"q1", "Green"}, {"q3", "ok"}}, 1, "1"},
		{"unknown question ignored", []Answer{{"q9", "Blue"}}, 0, "0"},
		{"first answer per question counts", []Answer{{"q1", "Green"}, {"q1", "Blue"}}, 0, "0"},
		{"no answers", nil, 0, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, correct, reward := Score(questions, tt.answers)
			require.Len(t, results, len(questions))
			require.Equal(t, tt.correct, correct)
			requireDecimal(t, tt.reward, reward)
		})
	}
}

func sumRewards(results []AnswerResult) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range results {
		sum = sum.Add(r.Reward)
	}
	return sum
}

func TestClipRewards(t *testing.T) {
	results := []AnswerResult{
		{QuestionID: "q1", Correct: true, Reward: dec("2")},
		{QuestionID: "q2", Correct: false, Reward: decimal.Zero},
		{QuestionID: "q3", Correct: true, Reward: dec("2")},
		{QuestionID: "q4", Correct: true, Reward: dec("1")},
	}

	ClipRewards(results, dec("5"), dec("1"))
	requireDecimal(t, "0.4", results[0].Reward)
	requireDecimal(t, "0", results[1].Reward)
	requireDecimal(t, "0.4", results[2].Reward)
	requireDecimal(t, "0.2", results[3].Reward)

	results = []AnswerResult{
		{QuestionID: "q1", Correct: true, Reward: dec("2")},
		{QuestionID: "q2", Correct: true, Reward: dec("2")},
		{QuestionID: "q3", Correct: true, Reward: dec("2")},
	}
	ClipRewards(results, dec("6"), dec("1"))
	requireDecimal(t, "0.3333", results[0].Reward)
	requireDecimal(t, "0.3333", results[1].Reward)
	requireDecimal(t, "0.3334", results[2].Reward)

	ClipRewards(results, dec("1"), decimal.Zero)
	requireDecimal(t, "0", sumRewards(results))

	untouched := []AnswerResult{{QuestionID: "q1", Correct: true, Reward: dec("2")}}
	ClipRewards(untouched, dec("2"), dec("5"))
	requireDecimal(t, "2", untouched[0].Reward)
}

func TestCreateAdValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(p *CreateAdParams)
	}{
		{"missing title", func(p *CreateAdParams) { p.Title = " " }},
		{"zero reward", func(p *CreateAdParams) { p.TotalReward = decimal.Zero }},
		{"no questions", func(p *CreateAdParams) { p.Questions = nil }},
		{"shares do not add up", func(p *CreateAdParams) { p.TotalReward = dec("8") }},
		{"too many multiple choice", func(p *CreateAdParams) {
			p.Questions = append(p.Questions, QuestionParams{Kind: KindMultipleChoice, Prompt: "x", Options: []string{"a", "b"}, CorrectAnswer: "a", RewardShare: dec("1")})
			p.TotalReward = dec("8")
		}},
		{"two feedback questions", func(p *CreateAdParams) {
			p.Questions = append(p.Questions, QuestionParams{Kind: KindFeedback, Prompt: "x", RewardShare: dec("1")})
			p.TotalReward = dec("8")
		}},
		{"answer not an option", func(p *CreateAdParams) { p.Questions[0].CorrectAnswer = "Red" }},
		{"answer differs from option in case", func(p *CreateAdParams) { p.Questions[0].CorrectAnswer = "blue" }},
		{"unknown kind", func(p *CreateAdParams) { p.Questions[3].Kind = "essay" }},
		{"ends before start", func(p *CreateAdParams) {
			start := time.Now().UTC()
			end := start.Add(-time.Hour)
			p.StartsAt, p.EndsAt = &start, &end
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := quizParams("Validation")
			tt.mutate(&p)
			_, err := f.svc.CreateAd(ctx, p)
			require.ErrorIs(t, err, ErrInvalidAd)
		})
	}
}

func TestCreateAdStoresQuestions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ad := f.createAd(t, "Summer Launch!")
	require.Contains(t, ad.Slug, "summer-launch-")

	got, err := f.svc.GetAd(ctx, ad.ID, true)
	require.NoError(t, err)
	require.Len(t, got.Questions, 4)
	require.Equal(t, 1, got.Questions[0].Position)
	require.Equal(t, "Blue", got.Questions[0].CorrectAnswer)
	require.Equal(t, []string{"Blue", "Green"}, []string(got.Questions[0].Options))

	public, err := f.svc.GetAd(ctx, ad.ID, false)
	require.NoError(t, err)
	for _, q := range public.Questions {
		require.Empty(t, q.CorrectAnswer)
	}

	_, err = f.svc.GetAd(ctx, "missing", false)
	require.ErrorIs(t, err, ErrAdNotFound)
}

func TestWatchAdCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ad := f.createAd(t, "Quiz")

	interaction, err := f.svc.WatchAd(ctx, WatchParams{UserID: "user-1", AdID: ad.ID, Answers: correctAnswers(ad)})
	require.NoError(t, err)
	require.Equal(t, 4, interaction.CorrectCount)
	requireDecimal(t, "7", interaction.TotalReward)
	require.False(t, interaction.RewardCapped)

	_, err = f.svc.WatchAd(ctx, WatchParams{UserID: "user-1", AdID: ad.ID, Answers: correctAnswers(ad)})
	require.ErrorIs(t, err, ErrAdAlreadyCompleted)

	ledger, err := f.earnings.GetUserEarnings(ctx, "user-1")
	require.NoError(t, err)
	requireDecimal(t, "7", ledger.AdsEarnings)
	requireDecimal(t, "7", ledger.TotalAdsEarnings)

	today, err := f.svc.GetDailyActivity(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, today.AdsWatched)
	requireDecimal(t, "7", today.Earned)

	require.Len(t, f.enqueuer.tasks, 1)
	require.Equal(t, taskname.AdCompleted, f.enqueuer.tasks[0].Type())
}

func TestWatchAdConcurrentCompletesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ad := f.createAd(t, "Race")

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.WatchAd(ctx, WatchParams{UserID: "user-1", AdID: ad.ID, Answers: correctAnswers(ad)})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ErrAdAlreadyCompleted)
	}
	require.Equal(t, 1, succeeded)

	ledger, err := f.earnings.GetUserEarnings(ctx, "user-1")
	require.NoError(t, err)
	requireDecimal(t, "7", ledger.AdsEarnings)

	var entries int64
	require.NoError(t, f.db.Model(&earnings.EarningEntry{}).Where("user_id = ?", "user-1").Count(&entries).Error)
	require.Equal(t, int64(1), entries)
}

func TestWatchAdPartialAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ad := f.createAd(t, "Partial")

	answers := correctAnswers(ad)
	answers[0].Answer = "wrong"

	interaction, err := f.svc.WatchAd(ctx, WatchParams{UserID: "user-1", AdID: ad.ID, Answers: answers})
	require.NoError(t, err)
	require.Equal(t, 3, interaction.CorrectCount)
	requireDecimal(t, "5", interaction.TotalReward)
	require.False(t, interaction.Answers[0].Correct)
}

func TestWatchAdDailyCap(t *testing.T) {
	f := newFixture(t, withDailyCap("10"))
	ctx := context.Background()

	first := f.createAd(t, "One")
	second := f.createAd(t, "Two")
	third := f.createAd(t, "Three")

	got, err := f.svc.WatchAd(ctx, WatchParams{UserID: "user-1", AdID: first.ID, Answers: correctAnswers(first)})
	require.NoError(t, err)
	requireDecimal(t, "7", got.TotalReward)

	got, err = f.svc.WatchAd(ctx, WatchParams{UserID: "user-1", AdID: second.ID, Answers: correctAnswers(second)})
	require.NoError(t, err)
	requireDecimal(t, "3", got.TotalReward)
	require.True(t, got.RewardCapped)
	requireDecimal(t, "3", sumRewards(got.Answers))

	stored, err := f.svc.interaction.FindOne(ctx, &UserAdInteraction{ID: got.ID})
	require.NoError(t, err)
	requireDecimal(t, "3", sumRewards(stored.Answers))

	got, err = f.svc.WatchAd(ctx, WatchParams{UserID: "user-1", AdID: third.ID, Answers: correctAnswers(third)})
	require.NoError(t, err)
	requireDecimal(t, "0", got.TotalReward)
	require.True(t, got.RewardCapped)
	requireDecimal(t, "0", sumRewards(got.Answers))

	ledger, err := f.earnings.GetUserEarnings(ctx, "user-1")
	require.NoError(t, err)
	requireDecimal(t, "10", ledger.AdsEarnings)

	today, err := f.svc.GetDailyActivity(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 3, today.AdsWatched)
	requireDecimal(t, "10", today.Earned)

	// another user has their own allowance
	got, err = f.svc.WatchAd(ctx, WatchParams{UserID: "user-2", AdID: first.ID, Answers: correctAnswers(first)})
	require.NoError(t, err)
	requireDecimal(t, "7", got.TotalReward)
}

func TestWatchAdRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("inactive ad", func(t *testing.T) {
		f := newFixture(t)
		ad := f.createAd(t, "Inactive")
		_, err := f.svc.SetActive(ctx, ad.ID, false)
		require.NoError(t, err)

		_, err = f.svc.WatchAd(ctx, WatchParams{UserID: "user-1", AdID: ad.ID, Answers: correctAnswers(ad)})
		require.ErrorIs(t, err, ErrAdNotAvailable)
	})

	t.Run("campaign ended", func(t *testing.T) {
		f := newFixture(t)
		ad := f.createAd(t, "Ended")
		end := time.Now().UTC().Add(-time.Minute)
		start := end.Add(-time.Hour)
		_, err := f.svc.UpdateAd(ctx, ad.ID, UpdateAdParams{StartsAt: &start, EndsAt: &end})
		require.NoError(t, err)

		_, err = f.svc.WatchAd(ctx, WatchParams{UserID: "user-1", AdID: ad.ID, Answers: correctAnswers(ad)})
		require.ErrorIs(t, err, ErrAdNotAvailable)
	})

	t.Run("unknown ad", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.WatchAd(ctx, WatchParams{UserID: "user-1", AdID: "nope"})
		require.ErrorIs(t, err, ErrAdNotFound)
	})

	t.Run("rewards paused", func(t *testing.T) {
		f := newFixture(t, withFlags(featureflags.Static{featureflags.AdRewards: false}))
		ad := f.createAd(t, "Paused")

		_, err := f.svc.WatchAd(ctx, WatchParams{UserID: "user-1", AdID: ad.ID, Answers: correctAnswers(ad)})
		require.ErrorIs(t, err, ErrAdRewardsPaused)
	})
}

func TestListAdsHidesInactiveForUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	active := f.createAd(t, "Active")
	inactive := f.createAd(t, "Hidden")
	_, err := f.svc.SetActive(ctx, inactive.ID, false)
	require.NoError(t, err)

	rows, _, err := f.svc.ListAds(ctx, AdFilter{ActiveOnly: true}, false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, active.ID, rows[0].ID)
	require.Empty(t, rows[0].Questions[0].CorrectAnswer)

	rows, _, err = f.svc.ListAds(ctx, AdFilter{}, true)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestUploadMedia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ad := f.createAd(t, "Media")

	got, err := f.svc.UploadMedia(ctx, MediaParams{
		AdID:        ad.ID,
		Kind:        "video",
		Filename:    "Launch Clip.MP4",
		ContentType: "video/mp4",
		Size:        4,
		Body:        bytes.NewReader([]byte("data")),
	})
	require.NoError(t, err)
	require.Len(t, f.storage.paths, 1)
	require.Contains(t, f.storage.paths[0], "ads/video/"+ad.ID+"/launch-clip-")
	require.Equal(t, "https://cdn.test/"+f.storage.paths[0], got.VideoURL)

	_, err = f.svc.UploadMedia(ctx, MediaParams{AdID: ad.ID, Kind: "audio", Filename: "a.mp3", Body: bytes.NewReader(nil)})
	require.ErrorIs(t, err, ErrInvalidMediaKind)

	f.storage.err = errors.New("bucket offline")
	_, err = f.svc.UploadMedia(ctx, MediaParams{AdID: ad.ID, Kind: "preview", Filename: "p.png", Body: bytes.NewReader(nil)})
	require.Error(t, err)
}

func TestHandleAdCompletedTaskRefreshesStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := NewTaskHandler(f.svc)

	first := f.createAd(t, "First")
	second := f.createAd(t, "Second")

	_, err := f.svc.WatchAd(ctx, WatchParams{UserID: "user-1", AdID: first.ID, Answers: correctAnswers(first)})
	require.NoError(t, err)
	answers := correctAnswers(second)[:1]
	_, err = f.svc.WatchAd(ctx, WatchParams{UserID: "user-1", AdID: second.ID, Answers: answers})
	require.NoError(t, err)

	payload, err := json.Marshal(AdCompletedPayload{UserID: "user-1", AdID: second.ID})
	require.NoError(t, err)
	require.NoError(t, h.HandleAdCompletedTask(ctx, asynq.NewTask(taskname.AdCompleted, payload)))

	stats, err := f.svc.GetStats(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.AdsWatched)
	require.Equal(t, int64(5), stats.CorrectAnswers)
	requireDecimal(t, "9", stats.TotalEarned)
	require.NotNil(t, stats.LastWatchedAt)

	// running it again overwrites rather than accumulates
	require.NoError(t, h.HandleAdCompletedTask(ctx, asynq.NewTask(taskname.AdCompleted, payload)))
	stats, err = f.svc.GetStats(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.AdsWatched)

	err = h.HandleAdCompletedTask(ctx, asynq.NewTask(taskname.AdCompleted, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
