package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"IntentFlow-Chain/sdk/go/intentflow"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/intents", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var submission intentflow.IntentSubmission
		_ = json.NewDecoder(r.Body).Decode(&submission)
		if submission.Async {
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(intentflow.Run{
				ID:      "run-demo",
				Session: submission.Session,
				Intent:  submission.Intent,
				Status:  "pending",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(intentflow.Report{
			Session:     submission.Session,
			Intent:      submission.Intent,
			Action:      "transfer",
			Amount:      "1.5",
			Token:       "native",
			TxHash:      "0xfeed",
			ExplorerURL: "https://scan.test/tx/0xfeed",
		})
	})
	mux.HandleFunc("/api/v1/runs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(intentflow.Run{
			ID:      "run-demo",
			Status:  "succeeded",
			Session: "demo",
			Report: &intentflow.Report{
				TxHash:      "0xfeed",
				ExplorerURL: "https://scan.test/tx/0xfeed",
			},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := intentflow.NewClient(srv.URL, srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	report, err := client.ExecuteIntent(ctx, "demo", "send 1.5 eth to bob")
	if err != nil {
		panic(err)
	}
	fmt.Printf("executed intent: amount=%s tx=%s\n", report.Amount, report.TxHash)

	record, err := client.SubmitIntent(ctx, intentflow.IntentSubmission{Session: "demo", Intent: "swap 10 usdc for eth"})
	if err != nil {
		panic(err)
	}
	fmt.Printf("queued run %s (status=%s)\n", record.ID, record.Status)

	final, err := client.WaitForRun(ctx, record.ID, 50*time.Millisecond)
	if err != nil {
		panic(err)
	}
	fmt.Printf("run %s finished with status %s\n", final.ID, final.Status)
}
