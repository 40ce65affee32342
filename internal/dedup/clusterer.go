// Package dedup は渡航記録の重複検出機能を提供する。
// アンカー方式の単一リンククラスタリングと、検出結果の永続化サービスを含む。
package dedup

import (
	"sort"

	"github.com/eshbtc/travelcheck/internal/model"
	"github.com/eshbtc/travelcheck/internal/similarity"
)

// DefaultThreshold はクラスタリングのデフォルト類似度閾値。
const DefaultThreshold = 0.7

// ScoreFunc は2件の渡航記録の類似度を計算する関数。
// 第1引数には常にグループのアンカーが渡される。
// 比較戦略を差し替え可能にするための関数型。
type ScoreFunc func(anchor, candidate *model.TravelEntry) float64

// Group はクラスタリングで検出された1つの重複グループ。
// Entriesの先頭要素がアンカー（プライマリに選出される記録）。
// Similarityはアンカーに対する非アンカーメンバーの類似度の平均値。
type Group struct {
	Entries    []*model.TravelEntry
	Similarity float64
}

// Clusterer は渡航記録列を重複グループに分割する。
//
// アルゴリズムは完全な全ペアクラスタリングではなく、固定アンカーに対する
// 単一リンク方式を忠実に再現する。候補はアンカーとのみ比較され、
// 候補同士は比較されない。アンカーに各々類似するが互いに非類似な2候補も
// 同一グループに入る。これは既存の重複レポートのセマンティクスとの互換性のため。
type Clusterer struct {
	score     ScoreFunc
	threshold float64
}

// NewClusterer はClustererの新しいインスタンスを生成する。
// scoreがnilの場合はSimilarity ScorerのScoreを使用する。
// thresholdが0以下の場合はDefaultThresholdを使用する。
func NewClusterer(score ScoreFunc, threshold float64) *Clusterer {
	if score == nil {
		score = similarity.NewScorer().Score
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Clusterer{
		score:     score,
		threshold: threshold,
	}
}

// Cluster は入力順（entry_date昇順を想定）の渡航記録列を重複グループに分割する。
// 各グループはサイズ2以上で、グループ類似度の降順に並べて返す。
// 処理済み集合により、1件の記録は最大1グループにのみ属する。
// 2件未満の入力はグループなしを返す。
func (c *Clusterer) Cluster(entries []*model.TravelEntry) []Group {
	var groups []Group
	processed := make(map[int]bool, len(entries))

	for i, anchor := range entries {
		if processed[i] {
			continue
		}
		processed[i] = true

		members := []*model.TravelEntry{anchor}
		var scoreSum float64

		// アンカー以降の未処理記録をスキャンし、アンカーとの類似度のみで判定する
		for j := i + 1; j < len(entries); j++ {
			if processed[j] {
				continue
			}
			score := c.score(anchor, entries[j])
			if score >= c.threshold {
				members = append(members, entries[j])
				scoreSum += score
				processed[j] = true
			}
		}

		if len(members) > 1 {
			groups = append(groups, Group{
				Entries:    members,
				Similarity: scoreSum / float64(len(members)-1),
			})
		}
	}

	// グループ類似度の降順に並べる
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].Similarity > groups[b].Similarity
	})

	return groups
}
