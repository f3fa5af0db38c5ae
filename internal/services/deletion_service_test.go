package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"social-go/internal/models"
)

func TestDeleteIdentityRemovesRowsAndExclusiveFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, "admin")
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")

	x := env.mediaFile(t, "uploads/x_abc123.png")
	y := env.mediaFile(t, "media/y_def456.mp4")
	bobFile := env.mediaFile(t, "uploads/bob.png")

	alicePost := createPost(t, env.db, alice.UserID, `<img src="/uploads/x_abc123.png">`)
	bobPost := createPost(t, env.db, bob.UserID, `<img src="/uploads/bob.png">`)
	require.NoError(t, env.db.Create(&models.Comment{AuthorID: alice.UserID, PostID: bobPost.ID, Body: `<video src="/media/y_def456.mp4">`}).Error)
	require.NoError(t, env.db.Create(&models.Comment{AuthorID: bob.UserID, PostID: alicePost.ID, Body: "nice"}).Error)
	_, err := env.friendships.Request(ctx, alice, bob.UserID)
	require.NoError(t, err)

	report, err := env.deletion.DeleteIdentity(ctx, admin, alice.UserID)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{x, y}, report.RemovedFiles)
	assert.Equal(t, int64(1), report.Posts)
	assert.Equal(t, int64(1), report.Comments)
	assert.Equal(t, int64(1), report.Friendships)
	assert.False(t, fileExists(x))
	assert.False(t, fileExists(y))

	assert.Zero(t, countRows(t, env.db, &models.User{}, "id = ?", alice.UserID))
	assert.Zero(t, countRows(t, env.db, &models.Post{}, "author_id = ?", alice.UserID))
	assert.Zero(t, countRows(t, env.db, &models.Comment{}, "author_id = ?", alice.UserID))
	assert.Zero(t, countRows(t, env.db, &models.Friendship{}, "requester_id = ? OR target_id = ?", alice.UserID, alice.UserID))

	// bob is untouched, including his comment on alice's deleted post
	assert.True(t, fileExists(bobFile))
	assert.Equal(t, int64(1), countRows(t, env.db, &models.Post{}, "author_id = ?", bob.UserID))
	assert.Equal(t, int64(1), countRows(t, env.db, &models.Comment{}, "author_id = ?", bob.UserID))
}

func TestDeleteIdentityTwiceReturnsNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")

	_, err := env.deletion.DeleteIdentity(ctx, alice, alice.UserID)
	require.NoError(t, err)

	report, err := env.deletion.DeleteIdentity(ctx, alice, alice.UserID)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteIdentityRemovesDirectMessagesBothWays(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	carol := env.user(t, "carol")

	inbound := env.mediaFile(t, "uploads/from_bob.png")
	require.NoError(t, env.db.Create(&models.DirectMessage{SenderID: alice.UserID, RecipientID: bob.UserID, Body: "hi"}).Error)
	require.NoError(t, env.db.Create(&models.DirectMessage{SenderID: bob.UserID, RecipientID: alice.UserID, Body: `<img src="/uploads/from_bob.png">`}).Error)
	require.NoError(t, env.db.Create(&models.DirectMessage{SenderID: bob.UserID, RecipientID: carol.UserID, Body: "unrelated"}).Error)

	report, err := env.deletion.DeleteIdentity(ctx, alice, alice.UserID)
	require.NoError(t, err)

	assert.Equal(t, int64(2), report.DirectMessages)
	assert.False(t, fileExists(inbound))
	assert.Equal(t, int64(1), countRows(t, env.db, &models.DirectMessage{}, "1 = 1"))
}

func TestDeleteIdentityKeepsFilesSharedWithSurvivors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")

	shared := env.mediaFile(t, "uploads/shared.png")
	own := env.mediaFile(t, "uploads/own.png")
	createPost(t, env.db, alice.UserID, `<img src="/uploads/shared.png"><img src="/uploads/own.png">`)
	createPost(t, env.db, bob.UserID, `<p>repost</p><img src="/uploads/shared.png?v=1">`)

	report, err := env.deletion.DeleteIdentity(ctx, alice, alice.UserID)
	require.NoError(t, err)

	assert.Equal(t, []string{own}, report.RemovedFiles)
	assert.Equal(t, []string{shared}, report.KeptFiles)
	assert.True(t, fileExists(shared))
	assert.False(t, fileExists(own))
}

func TestDeleteIdentityRemovesAvatarUnlessShared(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	carol := env.user(t, "carol")

	solo := env.mediaFile(t, "uploads/avatars/alice.png")
	common := env.mediaFile(t, "uploads/avatars/common.png")
	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", alice.UserID).Update("avatar", "alice.png").Error)
	require.NoError(t, env.db.Model(&models.User{}).Where("id IN ?", []uint{bob.UserID, carol.UserID}).Update("avatar", "common.png").Error)

	_, err := env.deletion.DeleteIdentity(ctx, alice, alice.UserID)
	require.NoError(t, err)
	assert.False(t, fileExists(solo))

	report, err := env.deletion.DeleteIdentity(ctx, bob, bob.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{common}, report.KeptFiles)
	assert.True(t, fileExists(common))
}

func TestDeleteIdentityMissingFileIsNotAnError(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	createPost(t, env.db, alice.UserID, `<img src="/uploads/never_written.png">`)

	report, err := env.deletion.DeleteIdentity(context.Background(), alice, alice.UserID)
	require.NoError(t, err)
	assert.Len(t, report.RemovedFiles, 1)
}

func TestDeleteIdentityPartialFileCleanup(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")

	stuck := env.mediaFile(t, "uploads/stuck.png")
	gone := env.mediaFile(t, "media/gone.mp4")
	env.files.fail[stuck] = errors.New("permission denied")
	createPost(t, env.db, alice.UserID, `<img src="/uploads/stuck.png"><video src="/media/gone.mp4" controls></video>`)

	report, err := env.deletion.DeleteIdentity(context.Background(), alice, alice.UserID)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartialFileCleanup)
	var partial *PartialFileCleanupError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{stuck}, partial.Paths)

	require.NotNil(t, report)
	assert.Equal(t, []string{gone}, report.RemovedFiles)
	assert.False(t, fileExists(gone))
	assert.True(t, fileExists(stuck))
	assert.Zero(t, countRows(t, env.db, &models.User{}, "id = ?", alice.UserID))
}

func TestDeleteIdentityGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, "admin")
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")

	_, err := env.deletion.DeleteIdentity(ctx, bob, alice.UserID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.deletion.DeleteIdentity(ctx, admin, admin.UserID)
	assert.ErrorIs(t, err, ErrProtectedIdentity)

	_, err = env.deletion.DeleteIdentity(ctx, admin, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.deletion.DeleteIdentityByUsername(ctx, admin, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)

	report, err := env.deletion.DeleteIdentityByUsername(ctx, admin, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, report.UserID)
	assert.Equal(t, int64(1), countRows(t, env.db, &models.User{}, "id = ?", bob.UserID))
}

func TestDeleteIdentityRollsBackOnStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, "admin")
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")

	post := createPost(t, env.db, alice.UserID, "<p>hello</p>")
	require.NoError(t, env.db.Create(&models.Comment{AuthorID: alice.UserID, PostID: post.ID, Body: "first"}).Error)
	_, err := env.friendships.Request(ctx, alice, bob.UserID)
	require.NoError(t, err)

	// posts are deleted after friendships and comments inside the transaction
	boom := errors.New("boom")
	require.NoError(t, env.db.Callback().Delete().Before("gorm:delete").Register("test:fail_posts", func(tx *gorm.DB) {
		if tx.Statement.Table == "posts" {
			_ = tx.AddError(boom)
		}
	}))

	report, err := env.deletion.DeleteIdentity(ctx, admin, alice.UserID)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.NotErrorIs(t, err, ErrNotFound)

	assert.Equal(t, int64(1), countRows(t, env.db, &models.User{}, "id = ?", alice.UserID))
	assert.Equal(t, int64(1), countRows(t, env.db, &models.Post{}, "author_id = ?", alice.UserID))
	assert.Equal(t, int64(1), countRows(t, env.db, &models.Comment{}, "author_id = ?", alice.UserID))
	assert.Equal(t, int64(1), countRows(t, env.db, &models.Friendship{}, "requester_id = ? OR target_id = ?", alice.UserID, alice.UserID))
}
