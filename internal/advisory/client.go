// Package advisory は渡航先国の渡航情報（政府発行フィード）の取得機能を提供する。
// RSSフィードの取得・解析と、国単位のバッチ取得ジョブを含む。
package advisory

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mmcdole/gofeed"

	"github.com/eshbtc/travelcheck/internal/model"
	"github.com/eshbtc/travelcheck/internal/security"
)

// maxAdvisoriesPerFeed は1フィードから取り込む渡航情報の上限件数。
const maxAdvisoriesPerFeed = 20

// FeedFetcher は国単位の渡航情報取得のインターフェース。
// テスト時にモックに差し替え可能。
type FeedFetcher interface {
	FetchCountry(ctx context.Context, countryCode string) ([]*model.Advisory, error)
}

// Client は渡航情報フィードのクライアント。
// URLテンプレートに国コードを代入したフィードURLからRSS/Atomを取得・解析する。
// 取得はSSRF防止付きのHTTPクライアントで行い、URLは取得前に静的検証される。
type Client struct {
	httpClient  *http.Client
	guard       security.SSRFGuardService
	logger      *slog.Logger
	urlTemplate string // 国コード用プレースホルダ %s をちょうど1つ含む
}

// NewClient はClientの新しいインスタンスを生成する。
// httpClientにはSSRFGuardService.NewSafeClientが生成したクライアントを渡すこと。
func NewClient(httpClient *http.Client, guard security.SSRFGuardService, logger *slog.Logger, urlTemplate string) *Client {
	return &Client{
		httpClient:  httpClient,
		guard:       guard,
		logger:      logger,
		urlTemplate: urlTemplate,
	}
}

// FetchCountry は指定国の渡航情報フィードを取得して解析する。
// 取得失敗時はエラーを返す（呼び出し元が前回値維持を判断する）。
func (c *Client) FetchCountry(ctx context.Context, countryCode string) ([]*model.Advisory, error) {
	feedURL := fmt.Sprintf(c.urlTemplate, countryCode)
	if err := c.guard.ValidateURL(feedURL); err != nil {
		return nil, fmt.Errorf("フィードURLの検証に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "TravelCheck/1.0 Advisory Fetcher")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("渡航情報フィードの取得に失敗しました",
			slog.String("country_code", countryCode),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("渡航情報フィードがエラーステータスを返しました",
			slog.String("country_code", countryCode),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("渡航情報フィードがステータス %d を返しました", resp.StatusCode)
	}

	// gofeed.ParserはRSS/Atom/JSON Feedを自動判別する
	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		c.logger.Error("渡航情報フィードの解析に失敗しました",
			slog.String("country_code", countryCode),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("フィードの解析に失敗しました: %w", err)
	}

	advisories := make([]*model.Advisory, 0, len(parsed.Items))
	for i, item := range parsed.Items {
		if i >= maxAdvisoriesPerFeed {
			break
		}
		if item.Link == "" {
			// (country_code, link)がUPSERTキーのためリンクのない項目は取り込めない
			continue
		}
		advisories = append(advisories, &model.Advisory{
			CountryCode: countryCode,
			Title:       item.Title,
			Summary:     item.Description,
			Link:        item.Link,
			PublishedAt: item.PublishedParsed,
		})
	}

	return advisories, nil
}
