// Package auditstate persists compact per-program audit counters so the
// dashboard can list programs by recent risk without replaying reports.
package auditstate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"chainaudit/pkg/models"
)

// RedisConfig configures Redis access for audit-state persistence.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// ProgramState holds rolling per-program audit counters.
type ProgramState struct {
	Program       string    `json:"program"`
	TotalFindings int64     `json:"total_findings"`
	CriticalCount int64     `json:"critical_count"`
	LastRiskScore int64     `json:"last_risk_score"`
	LastRiskLevel string    `json:"last_risk_level"`
	FirstReportAt time.Time `json:"first_report_at,omitempty"`
	LastReportAt  time.Time `json:"last_report_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// RedisStore manages writer/reader operations over audit-state keys.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a Redis-backed audit-state store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = "chainaudit:program_state"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis audit-state: %w", err)
	}

	return &RedisStore{client: client, prefix: strings.TrimSpace(cfg.KeyPrefix)}, nil
}

// WriteReport folds one detection report into the program's counters.
func (s *RedisStore) WriteReport(report models.DetectionReport) error {
	program := strings.TrimSpace(report.Program)
	if program == "" {
		return fmt.Errorf("report has no program")
	}

	ctx := context.Background()
	pipe := s.client.Pipeline()

	ts := float64(report.Timestamp.Unix())
	nowUnix := time.Now().Unix()
	stateKey := s.programKey(program)

	pipe.HSet(ctx, stateKey,
		"program", program,
		"last_risk_score", strconv.Itoa(report.RiskScore),
		"last_risk_level", report.RiskLevel,
		"updated_at", strconv.FormatInt(nowUnix, 10),
	)
	pipe.HIncrBy(ctx, stateKey, "total_findings", int64(report.VulnerabilitiesFound))
	pipe.HIncrBy(ctx, stateKey, "critical_count", int64(report.CriticalVulnerabilities))

	pipe.ZAddArgs(ctx, s.firstSetKey(), redis.ZAddArgs{LT: true, Members: []redis.Z{{Score: ts, Member: program}}})
	pipe.ZAddArgs(ctx, s.lastSetKey(), redis.ZAddArgs{GT: true, Members: []redis.Z{{Score: ts, Member: program}}})
	pipe.ZAdd(ctx, s.dirtySetKey(), redis.Z{Score: float64(nowUnix), Member: program})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update audit-state redis keys: %w", err)
	}
	return nil
}

// FetchDirtySince returns program states updated since the unix timestamp.
func (s *RedisStore) FetchDirtySince(since time.Time, limit int64) ([]ProgramState, error) {
	if limit <= 0 {
		limit = 1000
	}
	ctx := context.Background()
	members, err := s.client.ZRangeByScoreWithScores(ctx, s.dirtySetKey(), &redis.ZRangeBy{
		Min:    fmt.Sprintf("%d", since.Unix()),
		Max:    "+inf",
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read dirty audit-state members: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	states := make([]ProgramState, 0, len(members))
	for _, z := range members {
		program, ok := z.Member.(string)
		if !ok || program == "" {
			continue
		}

		hash, err := s.client.HGetAll(ctx, s.programKey(program)).Result()
		if err != nil || len(hash) == 0 {
			continue
		}

		totalFindings, _ := strconv.ParseInt(hash["total_findings"], 10, 64)
		criticalCount, _ := strconv.ParseInt(hash["critical_count"], 10, 64)
		lastScore, _ := strconv.ParseInt(hash["last_risk_score"], 10, 64)
		updatedUnix, _ := strconv.ParseInt(hash["updated_at"], 10, 64)
		first, _ := s.client.ZScore(ctx, s.firstSetKey(), program).Result()
		last, _ := s.client.ZScore(ctx, s.lastSetKey(), program).Result()

		st := ProgramState{
			Program:       program,
			TotalFindings: totalFindings,
			CriticalCount: criticalCount,
			LastRiskScore: lastScore,
			LastRiskLevel: hash["last_risk_level"],
		}
		if updatedUnix > 0 {
			st.UpdatedAt = time.Unix(updatedUnix, 0).UTC()
		}
		if first > 0 {
			st.FirstReportAt = time.Unix(int64(first), 0).UTC()
		}
		if last > 0 {
			st.LastReportAt = time.Unix(int64(last), 0).UTC()
		}
		states = append(states, st)
	}

	return states, nil
}

// Close closes Redis resources.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) programKey(program string) string {
	return s.prefix + ":program:" + program
}

func (s *RedisStore) firstSetKey() string {
	return s.prefix + ":first"
}

func (s *RedisStore) lastSetKey() string {
	return s.prefix + ":last"
}

func (s *RedisStore) dirtySetKey() string {
	return s.prefix + ":dirty"
}
