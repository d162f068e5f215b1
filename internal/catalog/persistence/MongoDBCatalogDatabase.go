package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nicholsn/opencga/internal/catalog/model"
	"github.com/nicholsn/opencga/internal/common"
)

const idCounterKey = "idCounter"

// MongoDBCatalogDatabase stores one document per entity. ACL entries and
// groups are embedded on their entity documents; the id counter and the
// daemon ACLs live in dedicated collections.
type MongoDBCatalogDatabase struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoDBCatalogDatabase connects, seeds the id counter at the configured
// offset and ensures the unique indexes the resolver relies on.
func NewMongoDBCatalogDatabase(ctx context.Context, uri, database string, offset int) (*MongoDBCatalogDatabase, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("error pinging MongoDB: %w", err)
	}
	db := &MongoDBCatalogDatabase{client: client, db: client.Database(database)}
	if err := db.seedCounter(ctx, offset); err != nil {
		return nil, err
	}
	if err := db.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	log.Println("✅ Connected to MongoDB catalog database:", database)
	return db, nil
}

func (db *MongoDBCatalogDatabase) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

func (db *MongoDBCatalogDatabase) seedCounter(ctx context.Context, offset int) error {
	_, err := db.db.Collection("metadata").UpdateOne(ctx,
		bson.M{"_id": idCounterKey},
		bson.M{"$setOnInsert": bson.M{"seq": offset}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error seeding the id counter: %w", err)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		"users":    {{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique}},
		"projects": {{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique}},
		"studies":  {{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique}},
		"files": {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "studyId", Value: 1}, {Key: "path", Value: 1}}},
		},
		"samples": {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "studyId", Value: 1}, {Key: "name", Value: 1}}},
		},
		"individuals": {{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique}},
		"cohorts":     {{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique}},
		"datasets":    {{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique}},
		"panels":      {{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique}},
		"jobs":        {{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique}},
		"daemon_acls": {{Keys: bson.D{{Key: "studyId", Value: 1}, {Key: "member", Value: 1}}, Options: unique}},
	}
	for name, models := range indexes {
		if _, err := db.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("error creating indexes on %s: %w", name, err)
		}
	}
	return nil
}

// NextID returns the next catalog-wide numeric id.
func (db *MongoDBCatalogDatabase) NextID(ctx context.Context) (int, error) {
	var doc struct {
		Seq int `bson:"seq"`
	}
	err := db.db.Collection("metadata").FindOneAndUpdate(ctx,
		bson.M{"_id": idCounterKey},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, common.NewInternalServerError(err, "error incrementing the id counter")
	}
	return doc.Seq, nil
}

func (db *MongoDBCatalogDatabase) collectionFor(kind model.Kind) (*mongo.Collection, error) {
	switch kind {
	case model.KindStudy:
		return db.db.Collection("studies"), nil
	case model.KindFile:
		return db.db.Collection("files"), nil
	case model.KindSample:
		return db.db.Collection("samples"), nil
	case model.KindIndividual:
		return db.db.Collection("individuals"), nil
	case model.KindCohort:
		return db.db.Collection("cohorts"), nil
	case model.KindDataset:
		return db.db.Collection("datasets"), nil
	case model.KindPanel:
		return db.db.Collection("panels"), nil
	case model.KindJob:
		return db.db.Collection("jobs"), nil
	default:
		return nil, common.NewErrInvalidArgument("unknown entity kind '%s'", kind)
	}
}

// findOneDoc decodes a single document, reporting absence without an error
// so callers can attach their own NotFound message.
func findOneDoc[T any](ctx context.Context, coll *mongo.Collection, filter bson.M) (T, bool, error) {
	var doc T
	err := coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return doc, false, nil
	}
	if err != nil {
		return doc, false, err
	}
	return doc, true, nil
}

// findDocs decodes every match ordered by ascending id.
func findDocs[T any](ctx context.Context, coll *mongo.Collection, filter bson.M) ([]T, error) {
	cur, err := coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []T
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func notDeleted() bson.M {
	return bson.M{"$ne": model.StatusDeleted}
}

func (db *MongoDBCatalogDatabase) setStatus(ctx context.Context, kind model.Kind, entityID int, status string) error {
	coll, err := db.collectionFor(kind)
	if err != nil {
		return err
	}
	newStatus := model.Status{Name: status, Date: common.GetCurrentTimestamp()}
	res, err := coll.UpdateOne(ctx, bson.M{"id": entityID}, bson.M{"$set": bson.M{"status": newStatus}})
	if err != nil {
		return common.NewInternalServerError(err, "error updating %s %d", kind, entityID)
	}
	if res.MatchedCount == 0 {
		return common.NewErrNotFound("%s %d not found", kind, entityID)
	}
	return nil
}

// --- users ---

func (db *MongoDBCatalogDatabase) CreateUser(ctx context.Context, user model.User) error {
	_, found, err := findOneDoc[model.User](ctx, db.db.Collection("users"), bson.M{"id": user.ID})
	if err != nil {
		return common.NewInternalServerError(err, "error fetching user '%s'", user.ID)
	}
	if found {
		return common.NewErrPrecondition("user '%s' already exists", user.ID)
	}
	if _, err := db.db.Collection("users").InsertOne(ctx, user); err != nil {
		return common.NewInternalServerError(err, "error creating user '%s'", user.ID)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) GetUser(ctx context.Context, userID string) (model.User, error) {
	user, found, err := findOneDoc[model.User](ctx, db.db.Collection("users"), bson.M{"id": userID})
	if err != nil {
		return model.User{}, common.NewInternalServerError(err, "error fetching user '%s'", userID)
	}
	if !found {
		return model.User{}, common.NewErrNotFound("user '%s' not found", userID)
	}
	return user, nil
}

func (db *MongoDBCatalogDatabase) UpdateUser(ctx context.Context, user model.User) error {
	res, err := db.db.Collection("users").ReplaceOne(ctx, bson.M{"id": user.ID}, user)
	if err != nil {
		return common.NewInternalServerError(err, "error updating user '%s'", user.ID)
	}
	if res.MatchedCount == 0 {
		return common.NewErrNotFound("user '%s' not found", user.ID)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) DeleteUser(ctx context.Context, userID string) error {
	newStatus := model.Status{Name: model.StatusDeleted, Date: common.GetCurrentTimestamp()}
	res, err := db.db.Collection("users").UpdateOne(ctx, bson.M{"id": userID}, bson.M{"$set": bson.M{"status": newStatus}})
	if err != nil {
		return common.NewInternalServerError(err, "error deleting user '%s'", userID)
	}
	if res.MatchedCount == 0 {
		return common.NewErrNotFound("user '%s' not found", userID)
	}
	return nil
}

// --- projects ---

func (db *MongoDBCatalogDatabase) CreateProject(ctx context.Context, project model.Project) error {
	filter := bson.M{"ownerId": project.OwnerID, "alias": project.Alias, "status.name": notDeleted()}
	_, found, err := findOneDoc[model.Project](ctx, db.db.Collection("projects"), filter)
	if err != nil {
		return common.NewInternalServerError(err, "error fetching project '%s'", project.Alias)
	}
	if found {
		return common.NewErrPrecondition("project alias '%s' already exists for user '%s'", project.Alias, project.OwnerID)
	}
	if _, err := db.db.Collection("projects").InsertOne(ctx, project); err != nil {
		return common.NewInternalServerError(err, "error creating project '%s'", project.Alias)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) GetProject(ctx context.Context, projectID int) (model.Project, error) {
	project, found, err := findOneDoc[model.Project](ctx, db.db.Collection("projects"), bson.M{"id": projectID})
	if err != nil {
		return model.Project{}, common.NewInternalServerError(err, "error fetching project %d", projectID)
	}
	if !found {
		return model.Project{}, common.NewErrNotFound("project %d not found", projectID)
	}
	return project, nil
}

func (db *MongoDBCatalogDatabase) FindProjectByAlias(ctx context.Context, ownerID, alias string) (model.Project, error) {
	filter := bson.M{"ownerId": ownerID, "alias": alias, "status.name": notDeleted()}
	project, found, err := findOneDoc[model.Project](ctx, db.db.Collection("projects"), filter)
	if err != nil {
		return model.Project{}, common.NewInternalServerError(err, "error fetching project '%s'", alias)
	}
	if !found {
		return model.Project{}, common.NewErrNotFound("project '%s' not found for user '%s'", alias, ownerID)
	}
	return project, nil
}

func (db *MongoDBCatalogDatabase) ListProjectsByOwner(ctx context.Context, ownerID string) ([]model.Project, error) {
	filter := bson.M{"ownerId": ownerID, "status.name": notDeleted()}
	projects, err := findDocs[model.Project](ctx, db.db.Collection("projects"), filter)
	if err != nil {
		return nil, common.NewInternalServerError(err, "error listing projects of user '%s'", ownerID)
	}
	return projects, nil
}

func (db *MongoDBCatalogDatabase) UpdateProject(ctx context.Context, project model.Project) error {
	res, err := db.db.Collection("projects").ReplaceOne(ctx, bson.M{"id": project.ID}, project)
	if err != nil {
		return common.NewInternalServerError(err, "error updating project %d", project.ID)
	}
	if res.MatchedCount == 0 {
		return common.NewErrNotFound("project %d not found", project.ID)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) DeleteProject(ctx context.Context, projectID int) error {
	newStatus := model.Status{Name: model.StatusDeleted, Date: common.GetCurrentTimestamp()}
	res, err := db.db.Collection("projects").UpdateOne(ctx, bson.M{"id": projectID}, bson.M{"$set": bson.M{"status": newStatus}})
	if err != nil {
		return common.NewInternalServerError(err, "error deleting project %d", projectID)
	}
	if res.MatchedCount == 0 {
		return common.NewErrNotFound("project %d not found", projectID)
	}
	return nil
}

// --- studies ---

func (db *MongoDBCatalogDatabase) CreateStudy(ctx context.Context, study model.Study) error {
	if _, err := db.GetProject(ctx, study.ProjectID); err != nil {
		return err
	}
	filter := bson.M{"projectId": study.ProjectID, "alias": study.Alias, "status.name": notDeleted()}
	_, found, err := findOneDoc[model.Study](ctx, db.db.Collection("studies"), filter)
	if err != nil {
		return common.NewInternalServerError(err, "error fetching study '%s'", study.Alias)
	}
	if found {
		return common.NewErrPrecondition("study alias '%s' already exists in project %d", study.Alias, study.ProjectID)
	}
	if _, err := db.db.Collection("studies").InsertOne(ctx, study); err != nil {
		return common.NewInternalServerError(err, "error creating study '%s'", study.Alias)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) GetStudy(ctx context.Context, studyID int) (model.Study, error) {
	study, found, err := findOneDoc[model.Study](ctx, db.db.Collection("studies"), bson.M{"id": studyID})
	if err != nil {
		return model.Study{}, common.NewInternalServerError(err, "error fetching study %d", studyID)
	}
	if !found {
		return model.Study{}, common.NewErrNotFound("study %d not found", studyID)
	}
	return study, nil
}

func (db *MongoDBCatalogDatabase) FindStudyByAlias(ctx context.Context, projectID int, alias string) (model.Study, error) {
	filter := bson.M{"projectId": projectID, "alias": alias, "status.name": notDeleted()}
	study, found, err := findOneDoc[model.Study](ctx, db.db.Collection("studies"), filter)
	if err != nil {
		return model.Study{}, common.NewInternalServerError(err, "error fetching study '%s'", alias)
	}
	if !found {
		return model.Study{}, common.NewErrNotFound("study '%s' not found in project %d", alias, projectID)
	}
	return study, nil
}

func (db *MongoDBCatalogDatabase) ListStudies(ctx context.Context) ([]model.Study, error) {
	studies, err := findDocs[model.Study](ctx, db.db.Collection("studies"), bson.M{"status.name": notDeleted()})
	if err != nil {
		return nil, common.NewInternalServerError(err, "error listing studies")
	}
	return studies, nil
}

func (db *MongoDBCatalogDatabase) ListStudiesByProject(ctx context.Context, projectID int) ([]model.Study, error) {
	filter := bson.M{"projectId": projectID, "status.name": notDeleted()}
	studies, err := findDocs[model.Study](ctx, db.db.Collection("studies"), filter)
	if err != nil {
		return nil, common.NewInternalServerError(err, "error listing studies of project %d", projectID)
	}
	return studies, nil
}

func (db *MongoDBCatalogDatabase) UpdateStudy(ctx context.Context, study model.Study) error {
	res, err := db.db.Collection("studies").ReplaceOne(ctx, bson.M{"id": study.ID}, study)
	if err != nil {
		return common.NewInternalServerError(err, "error updating study %d", study.ID)
	}
	if res.MatchedCount == 0 {
		return common.NewErrNotFound("study %d not found", study.ID)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) DeleteStudy(ctx context.Context, studyID int) error {
	return db.setStatus(ctx, model.KindStudy, studyID, model.StatusDeleted)
}

func (db *MongoDBCatalogDatabase) RestoreStudy(ctx context.Context, studyID int) error {
	return db.setStatus(ctx, model.KindStudy, studyID, model.StatusReady)
}

func (db *MongoDBCatalogDatabase) GetStudyOwner(ctx context.Context, studyID int) (string, error) {
	study, err := db.GetStudy(ctx, studyID)
	if err != nil {
		return "", err
	}
	project, err := db.GetProject(ctx, study.ProjectID)
	if err != nil {
		if common.IsErrNotFound(err) {
			return "", common.NewErrInternal("study %d references missing project %d", studyID, study.ProjectID)
		}
		return "", err
	}
	return project.OwnerID, nil
}

// --- groups ---

func (db *MongoDBCatalogDatabase) CreateGroup(ctx context.Context, studyID int, group model.Group) error {
	filter := bson.M{"id": studyID, "groups.id": bson.M{"$ne": group.ID}}
	res, err := db.db.Collection("studies").UpdateOne(ctx, filter, bson.M{"$push": bson.M{"groups": group}})
	if err != nil {
		return common.NewInternalServerError(err, "error creating group '%s' in study %d", group.ID, studyID)
	}
	if res.MatchedCount == 0 {
		if _, err := db.GetStudy(ctx, studyID); err != nil {
			return err
		}
		return common.NewErrPrecondition("group '%s' already exists in study %d", group.ID, studyID)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) GetGroups(ctx context.Context, studyID int) ([]model.Group, error) {
	study, err := db.GetStudy(ctx, studyID)
	if err != nil {
		return nil, err
	}
	return study.Groups, nil
}

func (db *MongoDBCatalogDatabase) GetGroupsForUser(ctx context.Context, studyID int, userID string) ([]model.Group, error) {
	study, err := db.GetStudy(ctx, studyID)
	if err != nil {
		return nil, err
	}
	var groups []model.Group
	for _, g := range study.Groups {
		for _, u := range g.UserIDs {
			if u == userID {
				groups = append(groups, g)
				break
			}
		}
	}
	return groups, nil
}

func (db *MongoDBCatalogDatabase) AddGroupMember(ctx context.Context, studyID int, groupID, userID string) error {
	filter := bson.M{"id": studyID, "groups.id": groupID}
	res, err := db.db.Collection("studies").UpdateOne(ctx, filter, bson.M{"$addToSet": bson.M{"groups.$.userIds": userID}})
	if err != nil {
		return common.NewInternalServerError(err, "error adding '%s' to group '%s'", userID, groupID)
	}
	if res.MatchedCount == 0 {
		if _, err := db.GetStudy(ctx, studyID); err != nil {
			return err
		}
		return common.NewErrNotFound("group '%s' not found in study %d", groupID, studyID)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) RemoveGroupMember(ctx context.Context, studyID int, groupID, userID string) error {
	filter := bson.M{"id": studyID, "groups.id": groupID}
	res, err := db.db.Collection("studies").UpdateOne(ctx, filter, bson.M{"$pull": bson.M{"groups.$.userIds": userID}})
	if err != nil {
		return common.NewInternalServerError(err, "error removing '%s' from group '%s'", userID, groupID)
	}
	if res.MatchedCount == 0 {
		if _, err := db.GetStudy(ctx, studyID); err != nil {
			return err
		}
		return common.NewErrNotFound("group '%s' not found in study %d", groupID, studyID)
	}
	return nil
}

func (db *MongoDBCatalogDatabase) DeleteGroup(ctx context.Context, studyID int, groupID string) error {
	filter := bson.M{"id": studyID, "groups.id": groupID}
	res, err := db.db.Collection("studies").UpdateOne(ctx, filter, bson.M{"$pull": bson.M{"groups": bson.M{"id": groupID}}})
	if err != nil {
		return common.NewInternalServerError(err, "error deleting group '%s' in study %d", groupID, studyID)
	}
	if res.MatchedCount == 0 {
		if _, err := db.GetStudy(ctx, studyID); err != nil {
			return err
		}
		return common.NewErrNotFound("group '%s' not found in study %d", groupID, studyID)
	}
	return nil
}
