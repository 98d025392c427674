// checkdelay fails when the published health document is older than the
// allowed threshold, so the external scheduler can alert on silent stalls.
package main

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jinsu133/airpermit-law-alert/internal/publish"
	"github.com/jinsu133/airpermit-law-alert/internal/util"
)

func main() {
	log.SetFlags(0)

	outDir := os.Getenv("OUT_DIR")
	if outDir == "" {
		outDir = "public"
	}
	threshold := 75
	if v := os.Getenv("DELAY_THRESHOLD_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("delay: bad DELAY_THRESHOLD_MIN %q: %v", v, err)
		}
		threshold = n
	}

	path := filepath.Join(outDir, "health.json")
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("delay: health.json not found: %s", path)
	}
	var h publish.Health
	if err := json.Unmarshal(b, &h); err != nil {
		log.Fatalf("delay: health.json unreadable: %v", err)
	}
	if h.LastSuccessKST == "" {
		log.Fatal("delay: last_success_kst empty")
	}
	last, err := time.Parse(time.RFC3339, h.LastSuccessKST)
	if err != nil {
		log.Fatalf("delay: bad last_success_kst %q: %v", h.LastSuccessKST, err)
	}

	now := time.Now().In(util.KST)
	diff := now.Sub(last).Minutes()
	log.Printf("delay: last_success_kst=%s", last.In(util.KST).Format("2006-01-02T15:04:05.000-07:00"))
	log.Printf("delay: now_kst=%s", now.Format("2006-01-02T15:04:05.000-07:00"))
	log.Printf("delay: diff=%.2f min, threshold=%d min", diff, threshold)
	if diff > float64(threshold) {
		log.Fatal("delay: threshold exceeded")
	}
}
