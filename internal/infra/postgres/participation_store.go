package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizplay-service/internal/domain"
)

// ParticipationStore keeps participations in the participations table.
type ParticipationStore struct {
	pool *pgxpool.Pool
}

func NewParticipationStore(pool *pgxpool.Pool) *ParticipationStore {
	return &ParticipationStore{pool: pool}
}

const participationColumns = `quiz_id, participant_id, started_at, finished_at, score, max_score, answers`

func (s *ParticipationStore) Get(ctx context.Context, quizID, participantID string) (domain.Participation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+participationColumns+` FROM participations WHERE quiz_id=$1 AND participant_id=$2`,
		quizID, participantID)
	return scanParticipation(row)
}

func (s *ParticipationStore) MarkStarted(ctx context.Context, quizID, participantID string, at time.Time) (domain.Participation, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO participations (quiz_id, participant_id, started_at) VALUES ($1, $2, $3)
		 ON CONFLICT (quiz_id, participant_id) DO NOTHING`,
		quizID, participantID, at)
	if err != nil {
		return domain.Participation{}, fmt.Errorf("insert participation: %w", err)
	}
	return s.Get(ctx, quizID, participantID)
}

func (s *ParticipationStore) MarkFinished(ctx context.Context, p domain.Participation) (domain.Participation, error) {
	answers, err := json.Marshal(p.Answers)
	if err != nil {
		return domain.Participation{}, fmt.Errorf("marshal answers: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE participations
		 SET finished_at=$3, score=$4, max_score=$5, answers=$6::jsonb
		 WHERE quiz_id=$1 AND participant_id=$2 AND finished_at IS NULL
		 RETURNING `+participationColumns,
		p.QuizID, p.ParticipantID, p.FinishedAt, p.Score, p.MaxScore, string(answers))
	finished, err := scanParticipation(row)
	if !errors.Is(err, domain.ErrParticipationNotFound) {
		return finished, err
	}

	// Nothing updated: either never started or already finished.
	if _, getErr := s.Get(ctx, p.QuizID, p.ParticipantID); getErr != nil {
		return domain.Participation{}, getErr
	}
	return domain.Participation{}, domain.ErrAlreadyPlayed
}

func scanParticipation(row pgx.Row) (domain.Participation, error) {
	var (
		p       domain.Participation
		answers []byte
	)
	err := row.Scan(&p.QuizID, &p.ParticipantID, &p.StartedAt, &p.FinishedAt, &p.Score, &p.MaxScore, &answers)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participation{}, domain.ErrParticipationNotFound
	}
	if err != nil {
		return domain.Participation{}, fmt.Errorf("scan participation: %w", err)
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &p.Answers); err != nil {
			return domain.Participation{}, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	return p, nil
}
