package authorization

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/common"
)

func TestCreateStudyAclsWithTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.manager.CreateStudyAcls(ctx, ownerUser, f.studyID, []string{aliceUser}, []string{"SHARE_JOBS"}, model.TemplateAnalyst)
	require.NoError(t, err)
	require.Len(t, created, 1)
	entry := created[0]
	assert.Equal(t, aliceUser, entry.Member)
	assert.True(t, entry.Has(model.ViewStudy))
	assert.True(t, entry.Has(model.DownloadFiles))
	assert.True(t, entry.Has(model.ShareJobs), "explicit permissions add on top of the template")
	assert.False(t, entry.Has(model.UpdateStudy))
	assert.False(t, entry.Has(model.DeleteFiles))
}

func TestCreateStudyAclsPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Only a SHARE_STUDY holder may register members.
	_, err := f.manager.CreateStudyAcls(ctx, aliceUser, f.studyID, []string{bobUser}, nil, "")
	assert.True(t, common.IsErrPermissionDenied(err))

	// Unknown users and groups are rejected.
	_, err = f.manager.CreateStudyAcls(ctx, ownerUser, f.studyID, []string{"nobody"}, nil, "")
	assert.True(t, common.IsErrNotFound(err))
	_, err = f.manager.CreateStudyAcls(ctx, ownerUser, f.studyID, []string{"@ghosts"}, nil, "")
	assert.True(t, common.IsErrNotFound(err))

	// A member may hold at most one entry per entity.
	_, err = f.manager.CreateStudyAcls(ctx, ownerUser, f.studyID, []string{aliceUser}, nil, "")
	require.NoError(t, err)
	_, err = f.manager.CreateStudyAcls(ctx, ownerUser, f.studyID, []string{aliceUser}, nil, "")
	assert.True(t, common.IsErrPrecondition(err))
}

func TestCreateAclsRequireStudyMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// bob has no study-level ACL: Invariant B blocks the job grant.
	_, err := f.manager.CreateAcls(ctx, ownerUser, f.jobRef(), []string{bobUser}, []string{"VIEW"})
	assert.True(t, common.IsErrPrecondition(err))

	// "*" and "anonymous" are exempt.
	created, err := f.manager.CreateAcls(ctx, ownerUser, f.jobRef(), []string{model.AllUsers}, []string{"VIEW"})
	require.NoError(t, err)
	require.Len(t, created, 1)

	// After the study registration bob qualifies.
	f.grantStudy(t, bobUser)
	created, err = f.manager.CreateAcls(ctx, ownerUser, f.jobRef(), []string{bobUser}, []string{"VIEW,UPDATE"})
	require.NoError(t, err)
	assert.Equal(t, []model.Permission{model.View, model.Update}, created[0].Permissions)

	// Second create for the same member fails.
	_, err = f.manager.CreateAcls(ctx, ownerUser, f.jobRef(), []string{bobUser}, []string{"VIEW"})
	assert.True(t, common.IsErrPrecondition(err))
}

func TestCreateAclsGroupMembershipSatisfiesInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// alice's group @members holds a study ACL, which counts for her.
	f.grantStudy(t, "@members")
	_, err := f.manager.CreateAcls(ctx, ownerUser, f.jobRef(), []string{aliceUser}, []string{"VIEW"})
	require.NoError(t, err)
}

func TestCreateAclsRequireShareOnEntity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.grantStudy(t, aliceUser, model.ViewJobs)
	_, err := f.manager.CreateAcls(ctx, aliceUser, f.jobRef(), []string{model.AllUsers}, []string{"VIEW"})
	assert.True(t, common.IsErrPermissionDenied(err))

	// SHARE on the entity is enough, SHARE_STUDY is not required.
	f.grant(t, model.KindJob, f.jobID, aliceUser, model.Share)
	_, err = f.manager.CreateAcls(ctx, aliceUser, f.jobRef(), []string{model.AllUsers}, []string{"VIEW"})
	require.NoError(t, err)
}

func TestUpdateAclAddKeepsExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantStudy(t, aliceUser)
	f.grant(t, model.KindJob, f.jobID, aliceUser, model.View)

	entry, err := f.manager.UpdateAcl(ctx, ownerUser, f.jobRef(), aliceUser, AclUpdate{Add: []string{"DELETE"}})
	require.NoError(t, err)
	require.Len(t, entry.Permissions, 2)
	assert.True(t, entry.Has(model.View))
	assert.True(t, entry.Has(model.Delete))
}

func TestUpdateAclSetReplaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantStudy(t, aliceUser)
	f.grant(t, model.KindJob, f.jobID, aliceUser, model.View, model.Update)

	entry, err := f.manager.UpdateAcl(ctx, ownerUser, f.jobRef(), aliceUser, AclUpdate{Set: []string{"DELETE"}})
	require.NoError(t, err)
	assert.Equal(t, []model.Permission{model.Delete}, entry.Permissions)

	got, err := f.manager.GetMemberAcl(ctx, ownerUser, f.jobRef(), aliceUser)
	require.NoError(t, err)
	assert.Equal(t, entry.Permissions, got.Permissions)
}

func TestUpdateAclValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantStudy(t, aliceUser)
	f.grant(t, model.KindJob, f.jobID, aliceUser, model.View)

	_, err := f.manager.UpdateAcl(ctx, ownerUser, f.jobRef(), aliceUser, AclUpdate{Set: []string{"VIEW"}, Add: []string{"DELETE"}})
	assert.True(t, common.IsErrInvalidArgument(err))

	_, err = f.manager.UpdateAcl(ctx, ownerUser, f.jobRef(), aliceUser, AclUpdate{})
	assert.True(t, common.IsErrInvalidArgument(err))

	_, err = f.manager.UpdateAcl(ctx, ownerUser, f.jobRef(), aliceUser, AclUpdate{Add: []string{"FLY"}})
	assert.True(t, common.IsErrInvalidArgument(err))

	// The member must already hold an entry.
	_, err = f.manager.UpdateAcl(ctx, ownerUser, f.jobRef(), bobUser, AclUpdate{Add: []string{"VIEW"}})
	assert.True(t, common.IsErrPrecondition(err))
}

func TestRemoveAclIdempotence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantStudy(t, aliceUser)
	f.grant(t, model.KindJob, f.jobID, aliceUser, model.View)

	require.NoError(t, f.manager.RemoveAcl(ctx, ownerUser, f.jobRef(), aliceUser))

	// The second identical call fails NotFound and changes nothing.
	err := f.manager.RemoveAcl(ctx, ownerUser, f.jobRef(), aliceUser)
	assert.True(t, common.IsErrNotFound(err))
	acls, err := f.db.GetAcls(ctx, model.KindJob, f.jobID, nil)
	require.NoError(t, err)
	assert.Empty(t, acls)
}

func TestRemoveAclOwnerForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantStudy(t, ownerUser, model.ShareStudy)

	err := f.manager.RemoveAcl(ctx, ownerUser, EntityRef{Kind: model.KindStudy, ID: f.studyID, StudyID: f.studyID}, ownerUser)
	assert.True(t, common.IsErrPrecondition(err))
}

func TestResetAclWithoutPriorEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Reset succeeds even when no entry exists.
	require.NoError(t, f.manager.ResetAcl(ctx, ownerUser, f.jobRef(), aliceUser))

	f.grantStudy(t, aliceUser)
	f.grant(t, model.KindJob, f.jobID, aliceUser, model.View)
	require.NoError(t, f.manager.ResetAcl(ctx, ownerUser, f.jobRef(), aliceUser))
	acls, err := f.db.GetAcls(ctx, model.KindJob, f.jobID, []string{aliceUser})
	require.NoError(t, err)
	assert.Empty(t, acls)
}

func TestGetMemberAclSelfAndGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantStudy(t, aliceUser)
	f.grant(t, model.KindJob, f.jobID, aliceUser, model.View)
	f.grant(t, model.KindJob, f.jobID, "@members", model.View)

	// alice may ask about herself and about her own group without SHARE.
	got, err := f.manager.GetMemberAcl(ctx, aliceUser, f.jobRef(), aliceUser)
	require.NoError(t, err)
	assert.Equal(t, aliceUser, got.Member)
	_, err = f.manager.GetMemberAcl(ctx, aliceUser, f.jobRef(), "@members")
	require.NoError(t, err)

	// bob may not ask about alice.
	_, err = f.manager.GetMemberAcl(ctx, bobUser, f.jobRef(), aliceUser)
	assert.True(t, common.IsErrPermissionDenied(err))
}

func TestGetAllAclsRequiresShare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grant(t, model.KindJob, f.jobID, model.AllUsers, model.View)

	_, err := f.manager.GetAllAcls(ctx, aliceUser, f.jobRef())
	assert.True(t, common.IsErrPermissionDenied(err))

	acls, err := f.manager.GetAllAcls(ctx, ownerUser, f.jobRef())
	require.NoError(t, err)
	assert.Len(t, acls, 1)
}

func TestRoundTripSetGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.grantStudy(t, aliceUser)
	f.grant(t, model.KindJob, f.jobID, aliceUser, model.Update)

	want := []string{"VIEW", "SHARE"}
	entry, err := f.manager.UpdateAcl(ctx, ownerUser, f.jobRef(), aliceUser, AclUpdate{Set: want})
	require.NoError(t, err)

	got, err := f.manager.GetMemberAcl(ctx, ownerUser, f.jobRef(), aliceUser)
	require.NoError(t, err)
	assert.Equal(t, entry.Permissions, got.Permissions)
	assert.Equal(t, []model.Permission{model.View, model.Share}, got.Permissions)
}

func TestSetDaemonAclOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.manager.SetDaemonAcl(ctx, aliceUser, f.studyID, []string{"VIEW_JOBS"})
	assert.True(t, common.IsErrPermissionDenied(err))

	require.NoError(t, f.manager.SetDaemonAcl(ctx, ownerUser, f.studyID, []string{"VIEW_JOBS"}))
	require.NoError(t, f.manager.CheckPermission(ctx, f.jobRef(), model.AdminUser, model.View))
}
