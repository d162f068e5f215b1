package persistence

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/common"
)

// aclProjection loads only the embedded entries of an entity document.
type aclProjection struct {
	Acls []model.AclEntry `bson:"acls"`
	Path string           `bson:"path,omitempty"`
}

func filterAclEntries(acls []model.AclEntry, members []string) []model.AclEntry {
	if len(members) == 0 {
		if acls == nil {
			return []model.AclEntry{}
		}
		return acls
	}
	wanted := make(map[string]bool, len(members))
	for _, m := range members {
		wanted[m] = true
	}
	out := []model.AclEntry{}
	for _, a := range acls {
		if wanted[a.Member] {
			out = append(out, a)
		}
	}
	return out
}

func (db *MongoDBCatalogDatabase) GetAcls(ctx context.Context, kind model.Kind, entityID int, members []string) ([]model.AclEntry, error) {
	coll, err := db.collectionFor(kind)
	if err != nil {
		return nil, err
	}
	var doc aclProjection
	opt := options.FindOne().SetProjection(bson.M{"acls": 1})
	err = coll.FindOne(ctx, bson.M{"id": entityID}, opt).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, common.NewErrNotFound("%s %d not found", kind, entityID)
	}
	if err != nil {
		return nil, common.NewInternalServerError(err, "error fetching ACLs of %s %d", kind, entityID)
	}
	return filterAclEntries(doc.Acls, members), nil
}

func (db *MongoDBCatalogDatabase) GetFileAclsByPaths(ctx context.Context, studyID int, paths []string, members []string) (map[string][]model.AclEntry, error) {
	filter := bson.M{
		"studyId":     studyID,
		"path":        bson.M{"$in": paths},
		"status.name": notDeleted(),
	}
	cur, err := db.db.Collection("files").Find(ctx, filter, options.Find().SetProjection(bson.M{"path": 1, "acls": 1}))
	if err != nil {
		return nil, common.NewInternalServerError(err, "error bulk-fetching ACLs in study %d", studyID)
	}
	defer cur.Close(ctx)
	var docs []aclProjection
	if err := cur.All(ctx, &docs); err != nil {
		return nil, common.NewInternalServerError(err, "error bulk-fetching ACLs in study %d", studyID)
	}
	out := make(map[string][]model.AclEntry, len(docs))
	for _, d := range docs {
		out[d.Path] = filterAclEntries(d.Acls, members)
	}
	return out, nil
}

func (db *MongoDBCatalogDatabase) CreateAcl(ctx context.Context, kind model.Kind, entityID int, entry model.AclEntry) error {
	coll, err := db.collectionFor(kind)
	if err != nil {
		return err
	}
	if err := db.CheckID(ctx, kind, entityID); err != nil {
		return err
	}
	filter := bson.M{"id": entityID, "acls.member": bson.M{"$ne": entry.Member}}
	res, err := coll.UpdateOne(ctx, filter, bson.M{"$push": bson.M{"acls": entry}})
	if err != nil {
		return common.NewInternalServerError(err, "error creating ACL on %s %d", kind, entityID)
	}
	if res.MatchedCount == 0 {
		return common.NewErrPrecondition("member '%s' already has an ACL defined for %s %d", entry.Member, kind, entityID)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) SetAclsToMember(ctx context.Context, kind model.Kind, entityID int, member string, permissions []model.Permission) error {
	coll, err := db.collectionFor(kind)
	if err != nil {
		return err
	}
	perms := permissions
	if perms == nil {
		perms = []model.Permission{}
	}
	filter := bson.M{"id": entityID, "acls.member": member}
	res, err := coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"acls.$.permissions": perms}})
	if err != nil {
		return common.NewInternalServerError(err, "error setting ACL on %s %d", kind, entityID)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	// No entry for the member yet, push a fresh one.
	return db.CreateAcl(ctx, kind, entityID, model.AclEntry{Member: member, Permissions: perms})
}

func (db *MongoDBCatalogDatabase) AddAclsToMember(ctx context.Context, kind model.Kind, entityID int, member string, permissions []model.Permission) ([]model.Permission, error) {
	coll, err := db.collectionFor(kind)
	if err != nil {
		return nil, err
	}
	filter := bson.M{"id": entityID, "acls.member": member}
	update := bson.M{"$addToSet": bson.M{"acls.$.permissions": bson.M{"$each": permissions}}}
	res, err := coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, common.NewInternalServerError(err, "error adding ACL permissions on %s %d", kind, entityID)
	}
	if res.MatchedCount == 0 {
		if err := db.CreateAcl(ctx, kind, entityID, model.AclEntry{Member: member, Permissions: permissions}); err != nil {
			return nil, err
		}
	}
	return db.memberPermissions(ctx, kind, entityID, member)
}

func (db *MongoDBCatalogDatabase) RemoveAclsFromMember(ctx context.Context, kind model.Kind, entityID int, member string, permissions []model.Permission) ([]model.Permission, error) {
	coll, err := db.collectionFor(kind)
	if err != nil {
		return nil, err
	}
	filter := bson.M{"id": entityID, "acls.member": member}
	update := bson.M{"$pull": bson.M{"acls.$.permissions": bson.M{"$in": permissions}}}
	res, err := coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, common.NewInternalServerError(err, "error removing ACL permissions on %s %d", kind, entityID)
	}
	if res.MatchedCount == 0 {
		if err := db.CheckID(ctx, kind, entityID); err != nil {
			return nil, err
		}
		return nil, common.NewErrNotFound("member '%s' has no ACL defined for %s %d", member, kind, entityID)
	}
	return db.memberPermissions(ctx, kind, entityID, member)
}

func (db *MongoDBCatalogDatabase) RemoveAcl(ctx context.Context, kind model.Kind, entityID int, member string) error {
	coll, err := db.collectionFor(kind)
	if err != nil {
		return err
	}
	res, err := coll.UpdateOne(ctx, bson.M{"id": entityID}, bson.M{"$pull": bson.M{"acls": bson.M{"member": member}}})
	if err != nil {
		return common.NewInternalServerError(err, "error removing ACL on %s %d", kind, entityID)
	}
	if res.MatchedCount == 0 {
		return common.NewErrNotFound("%s %d not found", kind, entityID)
	}
	if res.ModifiedCount == 0 {
		return common.NewErrNotFound("member '%s' has no ACL defined for %s %d", member, kind, entityID)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) memberPermissions(ctx context.Context, kind model.Kind, entityID int, member string) ([]model.Permission, error) {
	acls, err := db.GetAcls(ctx, kind, entityID, []string{member})
	if err != nil {
		return nil, err
	}
	if len(acls) == 0 {
		return []model.Permission{}, nil
	}
	return acls[0].Permissions, nil
}

// --- daemon ACLs ---

// daemonAclDoc scopes a daemon entry to one study.
type daemonAclDoc struct {
	StudyID     int                `bson:"studyId"`
	Member      string             `bson:"member"`
	Permissions []model.Permission `bson:"permissions"`
}

func (db *MongoDBCatalogDatabase) GetDaemonAcl(ctx context.Context, studyID int, member string) (model.AclEntry, bool, error) {
	filter := bson.M{"studyId": studyID, "member": member}
	doc, found, err := findOneDoc[daemonAclDoc](ctx, db.db.Collection("daemon_acls"), filter)
	if err != nil {
		return model.AclEntry{}, false, common.NewInternalServerError(err, "error fetching daemon ACL of '%s'", member)
	}
	if !found {
		return model.AclEntry{}, false, nil
	}
	return model.AclEntry{Member: doc.Member, Permissions: doc.Permissions}, true, nil
}

func (db *MongoDBCatalogDatabase) SetDaemonAcl(ctx context.Context, studyID int, entry model.AclEntry) error {
	doc := daemonAclDoc{StudyID: studyID, Member: entry.Member, Permissions: entry.Permissions}
	opt := options.Replace().SetUpsert(true)
	filter := bson.M{"studyId": studyID, "member": entry.Member}
	if _, err := db.db.Collection("daemon_acls").ReplaceOne(ctx, filter, doc, opt); err != nil {
		return common.NewInternalServerError(err, "error storing daemon ACL of '%s'", entry.Member)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) RemoveDaemonAcl(ctx context.Context, studyID int, member string) error {
	res, err := db.db.Collection("daemon_acls").DeleteOne(ctx, bson.M{"studyId": studyID, "member": member})
	if err != nil {
		return common.NewInternalServerError(err, "error removing daemon ACL of '%s'", member)
	}
	if res.DeletedCount == 0 {
		return common.NewErrNotFound("member '%s' has no daemon ACL in study %d", member, studyID)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) CheckID(ctx context.Context, kind model.Kind, entityID int) error {
	coll, err := db.collectionFor(kind)
	if err != nil {
		return err
	}
	count, err := coll.CountDocuments(ctx, bson.M{"id": entityID})
	if err != nil {
		return common.NewInternalServerError(err, "error checking %s %d", kind, entityID)
	}
	if count == 0 {
		return common.NewErrNotFound("%s %d not found", kind, entityID)
	}
	return nil
}
