package dingsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type DingContent struct {
	Content string `json:"content"`
}
type DingAt struct {
	IsAtAll bool `json:"isAtAll"`
}
type DingNotify struct {
	MsgType string      `json:"msgtype"`
	Text    DingContent `json:"text"`
	At      DingAt      `json:"at"`
}

type DingResult struct {
	ErrCode int64  `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

type DingSdk struct {
	url    string
	client *http.Client
}

func NewDingSdk(url string) *DingSdk {
	sdk := &DingSdk{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	return sdk
}

// Text posts a plain text message to the robot.
func (sdk *DingSdk) Text(ctx context.Context, content string) error {
	_, err := sdk.Notify(ctx, &DingNotify{
		MsgType: "text",
		Text:    DingContent{Content: content},
	})
	return err
}

func (sdk *DingSdk) Notify(ctx context.Context, notify *DingNotify) (*DingResult, error) {
	requestJson, err := json.Marshal(notify)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sdk.url, bytes.NewReader(requestJson))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accepts", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := sdk.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("response status code: %d", resp.StatusCode)
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	dingResult := new(DingResult)
	err = json.Unmarshal(respBody, dingResult)
	if err != nil {
		return nil, err
	}
	if dingResult.ErrCode != 0 || dingResult.ErrMsg != "ok" {
		return nil, fmt.Errorf("code: %d, err: %s", dingResult.ErrCode, dingResult.ErrMsg)
	}
	return dingResult, nil
}
