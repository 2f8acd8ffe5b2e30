// Package thread rebuilds the two-level comment tree of a post from the flat
// comment rows stored for it.
package thread

import (
	"sort"

	"socialnet/internal/model"
)

// Build assembles the view of post from every comment and reply row that
// carries its id. Top-level comments follow post.CommentIDs and replies
// follow their parent's ReplyIDs; rows missing from those lists are appended
// oldest first. Replies whose parent is not among comments are dropped.
//
// Replies are attached by scanning all rows for each top-level comment.
func Build(post model.Post, comments []model.Comment, owners map[string]model.UserSummary) model.PostView {
	view := model.PostView{
		ID:       post.ID,
		Content:  post.Content,
		Public:   post.Public,
		Owner:    resolve(owners, post.OwnerID),
		Likes:    likes(post.Likes),
		Comments: []model.CommentView{},
		Created:  post.CreatedAt,
	}

	var top []model.Comment
	for _, c := range comments {
		if c.PostID == post.ID && !c.IsReply() {
			top = append(top, c)
		}
	}
	orderBy(top, post.CommentIDs)

	for _, c := range top {
		var replies []model.Comment
		for _, r := range comments {
			if r.IsReply() && *r.ParentCommentID == c.ID {
				replies = append(replies, r)
			}
		}
		orderBy(replies, c.ReplyIDs)

		cv := model.CommentView{
			ID:      c.ID,
			Content: c.Content,
			Owner:   resolve(owners, c.OwnerID),
			Likes:   likes(c.Likes),
			Replies: make([]model.ReplyView, 0, len(replies)),
			Created: c.CreatedAt,
		}
		for _, r := range replies {
			cv.Replies = append(cv.Replies, model.ReplyView{
				ID:      r.ID,
				Content: r.Content,
				Owner:   resolve(owners, r.OwnerID),
				Likes:   likes(r.Likes),
				Created: r.CreatedAt,
			})
		}
		view.Comments = append(view.Comments, cv)
	}

	return view
}

// OwnerIDs lists the distinct owners referenced by post and comments.
func OwnerIDs(post model.Post, comments []model.Comment) []string {
	seen := map[string]struct{}{post.OwnerID: {}}
	ids := []string{post.OwnerID}
	for _, c := range comments {
		if _, ok := seen[c.OwnerID]; ok {
			continue
		}
		seen[c.OwnerID] = struct{}{}
		ids = append(ids, c.OwnerID)
	}
	return ids
}

// orderBy sorts rows by their position in ids. Rows absent from ids sort
// after listed ones, oldest first.
func orderBy(rows []model.Comment, ids []string) {
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, ok := pos[id]; !ok {
			pos[id] = i
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		pi, iok := pos[rows[i].ID]
		pj, jok := pos[rows[j].ID]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		default:
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
	})
}

func resolve(owners map[string]model.UserSummary, id string) model.UserSummary {
	if s, ok := owners[id]; ok {
		return s
	}
	return model.UnknownOwner(id)
}

func likes(l []string) []string {
	if l == nil {
		return []string{}
	}
	return l
}
