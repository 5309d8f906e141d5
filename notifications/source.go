package notifications

import (
	"context"
	"slices"
)

// ThreadRef is the part of a thread the counters need. AuthorID is not
// repeated in MemberIDs.
type ThreadRef struct {
	ID        string
	AuthorID  string
	Title     string
	MemberIDs []string
}

type PostRef struct {
	ID       string
	ThreadID string
	AuthorID string
	Title    string
}

type ConversationRef struct {
	ID        string
	MemberIDs []string
}

// Source reads the documents unseen counts are derived from.
type Source interface {
	ListThreadRefs(ctx context.Context) (threads []*ThreadRef, err error)
	ListPostRefs(ctx context.Context) (posts []*PostRef, err error)
	ListConversationRefs(ctx context.Context) (conversations []*ConversationRef, err error)
	FindThreadRef(ctx context.Context, threadID string) (thread *ThreadRef, err error)
	FindPostRef(ctx context.Context, postID string) (post *PostRef, err error)
	FindConversationRef(ctx context.Context, conversationID string) (conversation *ConversationRef, err error)
	ListCommenterIDs(ctx context.Context, postID string) (userIDs []string, err error)
	CountPosts(ctx context.Context, threadID string) (count int, err error)
	CountComments(ctx context.Context, postID string) (count int, err error)
	CountUnseenPosts(ctx context.Context, threadID, userID string) (count int, err error)
	CountUnseenComments(ctx context.Context, postID, userID string) (count int, err error)
	CountUnseenMessages(ctx context.Context, conversationID, userID string) (count int, err error)
	HasPostInThread(ctx context.Context, threadID, userID string) (ok bool, err error)
	HasCommentOnPost(ctx context.Context, postID, userID string) (ok bool, err error)
}

func (thread *ThreadRef) isMember(userID string) bool {
	return userID == thread.AuthorID || slices.Contains(thread.MemberIDs, userID)
}

// audience is the thread author followed by the joined members.
func (thread *ThreadRef) audience() []string {
	res := make([]string, 0, len(thread.MemberIDs)+1)
	res = append(res, thread.AuthorID)

	for _, memberID := range thread.MemberIDs {
		if memberID != thread.AuthorID {
			res = append(res, memberID)
		}
	}

	return res
}
