// simulate fires concurrent booking requests at the API and checks the
// collision invariant from the outside: for every contested slot exactly one
// request may succeed, all others must come back as slot_conflict.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-scheduling/internal/db"
)

type simConfig struct {
	apiBaseURL  string
	workers     int
	slots       int
	postgresDSN string
}

type slotTarget struct {
	providerID       uuid.UUID
	specializationID uuid.UUID
	date             string
	time             string
}

type results struct {
	created   int64
	conflicts int64
	errors    int64
}

func main() {
	cfg := simConfig{}
	flag.StringVar(&cfg.apiBaseURL, "api", "http://localhost:8080", "API base URL")
	flag.IntVar(&cfg.workers, "workers", 20, "concurrent workers per contested slot")
	flag.IntVar(&cfg.slots, "slots", 10, "number of contested slots")
	flag.Parse()

	cfg.postgresDSN = os.Getenv("POSTGRES_DSN")
	if cfg.postgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required to load provider/patient IDs")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.postgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	providers, err := loadIDs(ctx, pool, `SELECT id FROM providers WHERE is_active LIMIT $1`, cfg.slots)
	if err != nil {
		log.Fatalf("load providers: %v", err)
	}
	patients, err := loadIDs(ctx, pool, `SELECT id FROM patients LIMIT $1`, cfg.slots*cfg.workers)
	if err != nil {
		log.Fatalf("load patients: %v", err)
	}
	if len(providers) == 0 || len(patients) < cfg.workers {
		log.Fatal("not enough seed data; run cmd/seed first")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")

	var totals results
	failures := 0

	for i := 0; i < cfg.slots; i++ {
		target := slotTarget{
			providerID:       providers[i%len(providers)],
			specializationID: uuid.New(),
			date:             tomorrow,
			time:             fmt.Sprintf("%02d:%02d", 9+(i/2)%8, (i%2)*30),
		}

		res := raceSlot(client, cfg, target, patients)
		atomic.AddInt64(&totals.created, res.created)
		atomic.AddInt64(&totals.conflicts, res.conflicts)
		atomic.AddInt64(&totals.errors, res.errors)

		ok := res.created == 1 && res.errors == 0
		if !ok {
			failures++
		}
		log.Printf("slot %s %s @ %s: created=%d conflicts=%d errors=%d ok=%v",
			target.providerID, target.date, target.time, res.created, res.conflicts, res.errors, ok)
	}

	log.Printf("total: created=%d conflicts=%d errors=%d", totals.created, totals.conflicts, totals.errors)
	if failures > 0 {
		log.Fatalf("%d slots violated the exactly-one-winner property", failures)
	}
	log.Println("all contested slots had exactly one winner")
}

// raceSlot launches cfg.workers concurrent bookings for one slot and tallies
// the outcomes.
func raceSlot(client *http.Client, cfg simConfig, target slotTarget, patients []uuid.UUID) results {
	var res results
	var wg sync.WaitGroup

	start := make(chan struct{})
	for w := 0; w < cfg.workers; w++ {
		wg.Add(1)
		patientID := patients[w%len(patients)]

		go func() {
			defer wg.Done()
			<-start

			status, body, err := postBooking(client, cfg.apiBaseURL, target, patientID)
			switch {
			case err != nil:
				atomic.AddInt64(&res.errors, 1)
			case status == http.StatusCreated:
				atomic.AddInt64(&res.created, 1)
			case status == http.StatusConflict:
				atomic.AddInt64(&res.conflicts, 1)
			default:
				log.Printf("unexpected status %d: %s", status, body)
				atomic.AddInt64(&res.errors, 1)
			}
		}()
	}

	close(start)
	wg.Wait()
	return res
}

func postBooking(client *http.Client, baseURL string, target slotTarget, patientID uuid.UUID) (int, string, error) {
	payload := map[string]any{
		"patient_id":        patientID.String(),
		"provider_id":       target.providerID.String(),
		"specialization_id": target.specializationID.String(),
		"date":              target.date,
		"time":              target.time,
		"type":              "consultation",
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, "", err
	}

	resp, err := client.Post(baseURL+"/appointments", "application/json", bytes.NewReader(buf))
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, string(body), nil
}

func loadIDs(ctx context.Context, pool db.Pool, query string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
