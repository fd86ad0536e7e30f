// Command smoke uploads a roster workbook to a running instance, polls the
// job until it settles, and optionally saves the resulting archive.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type jobState struct {
	ID        string  `json:"id"`
	Status    string  `json:"status"`
	Progress  int     `json:"progress"`
	ResultURL *string `json:"resultUrl"`
	Error     *string `json:"error"`
}

func main() {
	var (
		base     string
		file     string
		out      string
		timeout  time.Duration
		interval time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&file, "file", "roster.xlsx", "Workbook to upload")
	flag.StringVar(&out, "out", "", "Where to save the archive (skip when empty)")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Overall timeout")
	flag.DurationVar(&interval, "interval", time.Second, "Poll interval")
	flag.Parse()

	client := &http.Client{Timeout: 30 * time.Second}

	job, err := upload(client, base, file)
	if err != nil {
		log.Fatalf("upload failed: %v", err)
	}
	fmt.Printf("job %s accepted\n", job.ID)

	deadline := time.Now().Add(timeout)
	for {
		if time.Now().After(deadline) {
			log.Fatalf("job %s did not settle within %s", job.ID, timeout)
		}
		time.Sleep(interval)
		state, err := poll(client, base, job.ID)
		if err != nil {
			log.Fatalf("poll failed: %v", err)
		}
		fmt.Printf("status=%s progress=%d%%\n", state.Status, state.Progress)
		switch state.Status {
		case "FINISHED":
			if out != "" && state.ResultURL != nil {
				if err := download(client, base+*state.ResultURL, out); err != nil {
					log.Fatalf("download failed: %v", err)
				}
				fmt.Printf("archive saved to %s\n", out)
			}
			return
		case "FAILED":
			msg := "unknown error"
			if state.Error != nil {
				msg = *state.Error
			}
			log.Fatalf("job failed: %s", msg)
		}
	}
}

func upload(client *http.Client, base, file string) (*jobState, error) {
	src, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(file))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, base+"/api/v1/forms/generate", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeJob(resp)
}

func poll(client *http.Client, base, id string) (*jobState, error) {
	resp, err := client.Get(base + "/api/v1/forms/jobs/" + id)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeJob(resp)
}

func decodeJob(resp *http.Response) (*jobState, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}
	if env.Error != nil {
		return nil, fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
	}
	var state jobState
	if err := json.Unmarshal(env.Data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func download(client *http.Client, url, out string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	dst, err := os.Create(out)
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, resp.Body)
	return err
}
