package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Andrandra1na/AMER-SMA/aggregate"
	cfg "github.com/Andrandra1na/AMER-SMA/config"
	"github.com/Andrandra1na/AMER-SMA/media"
	"github.com/Andrandra1na/AMER-SMA/store"
	"github.com/Andrandra1na/AMER-SMA/timeline"
	"github.com/Andrandra1na/AMER-SMA/vocal"
)

type Pipeline struct {
	cfg   *cfg.Root
	store Store
	dec   Decoder
	an    Analyzers
	obs   Observer
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewPipeline(c *cfg.Root, st Store, dec Decoder, an Analyzers, obs Observer, log logrus.FieldLogger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{cfg: c, store: st, dec: dec, an: an, obs: obs, log: log, now: time.Now}
}

// Run analyzes one session end to end. The session is marked analyzing
// before any work starts; results are committed atomically together with
// the analysis_complete status, or the session is marked analysis_failed
// and its previous results are left untouched.
func (p *Pipeline) Run(ctx context.Context, sessionID int64) (out Outcome) {
	runID := uuid.NewString()
	log := p.log.WithFields(logrus.Fields{"session_id": sessionID, "run_id": runID})
	out = Outcome{SessionID: sessionID, RunID: runID, Status: store.StatusAnalyzing}
	if p.obs != nil {
		p.obs.RunStarted()
	}

	sess, err := p.store.Session(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = fmt.Errorf("%w: %v", ErrInputInvalid, err)
		}
		out.Status, out.Err = store.StatusFailed, err
		log.WithError(err).Error("loading session")
		if p.obs != nil {
			p.obs.RunFailed()
		}
		return out
	}

	diags := &diagnostics{log: log, obs: p.obs}
	if err := p.store.SetStatus(ctx, sessionID, store.StatusAnalyzing); err != nil {
		p.fail(ctx, log, &out, fmt.Errorf("%w: %w", ErrPersist, err), diags)
		return out
	}
	if err := p.store.BeginRun(ctx, runID, sessionID, p.now()); err != nil {
		log.WithError(err).Warn("recording run start")
	}
	log.WithField("media", sess.MediaPath).Info("analysis started")

	commit, err := p.analyze(ctx, log, runID, sess, diags)
	if err != nil {
		p.fail(ctx, log, &out, err, diags)
		return out
	}
	if err := p.store.CommitRun(ctx, commit); err != nil {
		p.fail(ctx, log, &out, fmt.Errorf("%w: %w", ErrPersist, err), diags)
		return out
	}

	out.Status = store.StatusComplete
	out.FinalScore = commit.Report.FinalScore
	out.Answers = len(commit.Answers)
	out.Diagnostics = diags.list()
	p.finishRun(ctx, log, runID, store.StatusComplete, nil, len(out.Diagnostics))
	if p.obs != nil {
		p.obs.RunSucceeded()
	}
	log.WithFields(logrus.Fields{
		"final_score": out.FinalScore,
		"answers":     out.Answers,
		"degraded":    len(out.Diagnostics),
	}).Info("analysis complete")
	return out
}

// analyze does all the work between the analyzing and the terminal state and
// returns what has to be committed. Nothing is written here.
func (p *Pipeline) analyze(ctx context.Context, log logrus.FieldLogger, runID string, sess *store.Session, diags *diagnostics) (c store.RunCommit, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("stack", string(debug.Stack())).Error("analysis panicked")
			err = fmt.Errorf("panic during analysis: %v", r)
		}
	}()

	questions, err := p.validate(ctx, sess)
	if err != nil {
		return c, err
	}

	ready := checkReady(ctx, diags, map[string]readyChecker{
		AnalyzerTranscription: p.an.Transcriber,
		AnalyzerProsody:       p.an.Prosody,
		AnalyzerGrammar:       p.an.Grammar,
		AnalyzerEmotion:       p.an.Emotion,
		AnalyzerGaze:          p.an.Gaze,
	})
	if !ready.ok(AnalyzerTranscription) {
		return c, fmt.Errorf("%s unavailable: %w", AnalyzerTranscription, ready[AnalyzerTranscription])
	}

	audio, err := p.dec.Decode(ctx, sess.MediaPath)
	if err != nil {
		return c, fmt.Errorf("%w: decoding %s: %v", ErrInputInvalid, sess.MediaPath, err)
	}
	defer func() {
		if cerr := audio.Close(); cerr != nil {
			log.WithError(cerr).Warn("removing decoded audio")
		}
	}()

	windows, err := timeline.Build(sess.Events, audio.Duration(), p.cfg.Analysis.WindowMargin)
	if err != nil {
		return c, fmt.Errorf("%w: %v", ErrInputInvalid, err)
	}

	var utts []timeline.Utterance
	err = guard(func() (err error) {
		utts, err = p.an.Transcriber.Transcribe(ctx, audio.Path)
		return err
	})
	if err != nil {
		return c, fmt.Errorf("%s: %w", AnalyzerTranscription, err)
	}
	fullText := strings.TrimSpace(timeline.Join(utts))
	log.WithFields(logrus.Fields{
		"duration":   audio.Duration(),
		"windows":    len(windows),
		"utterances": len(utts),
	}).Debug("recording transcribed")

	var (
		g       errgroup.Group
		records = make([]*store.AnswerAnalysis, len(windows))
		emo     aggregate.Emotion
		gaze    aggregate.GazeResult
		global  vocal.Features
	)
	g.SetLimit(p.workers())

	for i, w := range windows {
		text := answerText(utts, w)
		if text == "" {
			log.WithField("question_id", w.QuestionID).Debug("no answer in window")
			continue
		}
		in := questionInput{
			window:   w,
			question: questions[w.QuestionID],
			text:     text,
			audio:    audio.Sub(w.Start, w.End),
		}
		g.Go(func() error {
			rec := p.analyzeQuestion(ctx, runID, in, ready, diags)
			records[i] = &rec
			return nil
		})
	}

	g.Go(func() error {
		emo = p.emotion(ctx, audio, ready, diags)
		return nil
	})
	g.Go(func() error {
		gaze = p.gaze(ctx, sess.MediaPath, windows, ready, diags)
		return nil
	})
	g.Go(func() error {
		global = p.globalVocal(ctx, audio.Clip, fullText, ready, diags)
		return nil
	})
	_ = g.Wait()

	answers := make([]store.AnswerAnalysis, 0, len(records))
	for _, r := range records {
		if r != nil {
			r.SessionID = sess.ID
			answers = append(answers, *r)
		}
	}

	return p.buildCommit(ctx, log, runID, sess, answers, fullText, global, emo, gaze, diags.list()), nil
}

// validate covers the input errors: a missing recording, an empty timeline,
// a question listed twice or one that is not in the catalog.
func (p *Pipeline) validate(ctx context.Context, sess *store.Session) (map[int64]store.Question, error) {
	if strings.TrimSpace(sess.MediaPath) == "" {
		return nil, fmt.Errorf("%w: session %d has no recording", ErrInputInvalid, sess.ID)
	}
	if len(sess.Events) == 0 {
		return nil, fmt.Errorf("%w: session %d has an empty timeline", ErrInputInvalid, sess.ID)
	}
	ids := make([]int64, 0, len(sess.Events))
	seen := make(map[int64]bool, len(sess.Events))
	for _, e := range sess.Events {
		if seen[e.QuestionID] {
			return nil, fmt.Errorf("%w: question %d appears twice in the timeline", ErrInputInvalid, e.QuestionID)
		}
		seen[e.QuestionID] = true
		ids = append(ids, e.QuestionID)
	}
	qs, err := p.store.Questions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading questions: %w", err)
	}
	var missing []string
	for _, id := range ids {
		if _, ok := qs[id]; !ok {
			missing = append(missing, fmt.Sprint(id))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: unknown questions %s", ErrInputInvalid, strings.Join(missing, ","))
	}
	return qs, nil
}

func (p *Pipeline) emotion(ctx context.Context, audio *media.Audio, ready readiness, diags *diagnostics) aggregate.Emotion {
	if !ready.ok(AnalyzerEmotion) {
		return aggregate.Emotion{}
	}
	var emo aggregate.Emotion
	err := guard(func() (err error) {
		emo, err = p.an.Emotion.Classify(ctx, audio.Path)
		return err
	})
	if err != nil {
		diags.add(AnalyzerEmotion, err)
		return aggregate.Emotion{}
	}
	return emo
}

func (p *Pipeline) gaze(ctx context.Context, mediaPath string, windows []timeline.Window, ready readiness, diags *diagnostics) aggregate.GazeResult {
	if !ready.ok(AnalyzerGaze) {
		return aggregate.FallbackGaze(windows)
	}
	var samples []aggregate.GazeSample
	err := guard(func() (err error) {
		samples, err = p.an.Gaze.Track(ctx, mediaPath, float64(p.cfg.Analysis.GazeFPS))
		return err
	})
	if err != nil {
		diags.add(AnalyzerGaze, err)
		return aggregate.FallbackGaze(windows)
	}
	return aggregate.Gaze(samples, windows)
}

// globalVocal runs prosody once over the whole recording for the session
// pitch and fluency.
func (p *Pipeline) globalVocal(ctx context.Context, clip media.Clip, transcript string, ready readiness, diags *diagnostics) vocal.Features {
	if !ready.ok(AnalyzerProsody) {
		return vocal.Features{}
	}
	var pr vocal.Prosody
	err := guard(func() (err error) {
		pr, err = p.an.Prosody.Extract(ctx, clip)
		return err
	})
	if err != nil {
		diags.add(AnalyzerProsody, fmt.Errorf("full recording: %w", err))
		return vocal.Features{}
	}
	return vocal.Compute(pr, clip.Duration(), transcript, p.cfg.Analysis.PauseThreshold)
}

func (p *Pipeline) workers() int {
	if n := p.cfg.Analysis.Workers; n > 0 {
		return n
	}
	return 1
}

func (p *Pipeline) fail(ctx context.Context, log logrus.FieldLogger, out *Outcome, err error, diags *diagnostics) {
	// the caller's deadline may be what failed the run
	bg := context.WithoutCancel(ctx)
	out.Status, out.Err = store.StatusFailed, err
	out.Diagnostics = diags.list()
	if serr := p.store.SetStatus(bg, out.SessionID, store.StatusFailed); serr != nil {
		log.WithError(serr).Error("marking session failed")
	}
	msg := err.Error()
	p.finishRun(bg, log, out.RunID, store.StatusFailed, &msg, len(out.Diagnostics))
	if p.obs != nil {
		p.obs.RunFailed()
	}
	log.WithError(err).Error("analysis failed")
}

func (p *Pipeline) finishRun(ctx context.Context, log logrus.FieldLogger, runID string, status store.Status, msg *string, n int) {
	if err := p.store.FinishRun(ctx, runID, status, msg, n, p.now()); err != nil {
		log.WithError(err).Warn("recording run end")
	}
}
