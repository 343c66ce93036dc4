package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"verifier/internal/model"
	"verifier/pkg/logger"
)

// FeishuNotifier sends anomaly notifications to a Feishu (Lark) webhook
type FeishuNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewFeishuNotifier creates a notifier. Config wins over the FEISHU_WEBHOOK_URL env variable;
// with neither set notifications are skipped.
func NewFeishuNotifier(webhookURL string) *FeishuNotifier {
	if webhookURL == "" {
		webhookURL = os.Getenv("FEISHU_WEBHOOK_URL")
	}
	if webhookURL == "" {
		logger.Warn("Feishu webhook URL not configured, anomaly notifications disabled")
	}

	return &FeishuNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// AnomalyNotification one anomaly transition
type AnomalyNotification struct {
	Transition  model.AnomalyTransition
	Anomaly     *model.Anomaly
	OverallRisk float64
	ServiceID   string
	EnvID       string
	Category    string
}

// NotifyAnomaly posts a card for an opened or closed anomaly. Refreshes are not sent.
func (f *FeishuNotifier) NotifyAnomaly(ctx context.Context, n *AnomalyNotification) error {
	if f.webhookURL == "" {
		return nil
	}
	if n.Transition != model.AnomalyOpened && n.Transition != model.AnomalyClosed {
		return nil
	}

	payload, err := json.Marshal(buildAnomalyCard(n))
	if err != nil {
		return fmt.Errorf("failed to marshal Feishu message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Feishu notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Feishu API returned status code: %d", resp.StatusCode)
	}

	logger.InfoCtx(ctx, "anomaly notification sent, verification_task_id: %s, transition: %s",
		n.Anomaly.VerificationTaskID, n.Transition)
	return nil
}

func buildAnomalyCard(n *AnomalyNotification) map[string]interface{} {
	template, title := "red", "Anomaly Opened"
	if n.Transition == model.AnomalyClosed {
		template, title = "green", "Anomaly Closed"
	}

	var metrics strings.Builder
	for _, m := range n.Anomaly.Metrics {
		fmt.Fprintf(&metrics, "- %s / %s: %.2f\n", m.GroupName, m.MetricName, m.RiskScore)
	}
	if metrics.Len() == 0 {
		metrics.WriteString("-")
	}

	field := func(label, value string) map[string]interface{} {
		return map[string]interface{}{
			"is_short": true,
			"text": map[string]interface{}{
				"content": fmt.Sprintf("**%s**\n%s", label, value),
				"tag":     "lark_md",
			},
		}
	}

	return map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"header": map[string]interface{}{
				"template": template,
				"title": map[string]interface{}{
					"content": title,
					"tag":     "plain_text",
				},
			},
			"elements": []interface{}{
				map[string]interface{}{
					"tag": "div",
					"fields": []interface{}{
						field("Service", n.ServiceID),
						field("Environment", n.EnvID),
						field("Category", n.Category),
						field("Overall Risk", fmt.Sprintf("%.2f", n.OverallRisk)),
						field("Source", n.Anomaly.VerificationTaskID),
						field("Since", n.Anomaly.StartTime.UTC().Format(time.RFC3339)),
					},
				},
				map[string]interface{}{"tag": "hr"},
				map[string]interface{}{
					"tag": "div",
					"text": map[string]interface{}{
						"content": "**Anomalous Metrics**\n" + metrics.String(),
						"tag":     "lark_md",
					},
				},
			},
		},
	}
}
