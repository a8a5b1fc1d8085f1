package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/cityvoice/internal/models"
	"github.com/shenikar/cityvoice/internal/service"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	issuesCollection = "issues"
	votesCollection  = "votes"
)

// geoPoint - точка в формате GeoJSON, как ее хранит документная схема обращений
type geoPoint struct {
	Type        string     `bson:"type"`
	Coordinates [2]float64 `bson:"coordinates"` // [longitude, latitude]
	Address     string     `bson:"address,omitempty"`
}

type issueDocument struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Category    string    `bson:"category"`
	Status      string    `bson:"status"`
	Location    geoPoint  `bson:"location"`
	Images      []string  `bson:"images"`
	ReportedBy  string    `bson:"reportedBy,omitempty"`
	Votes       int       `bson:"votes"`
	Comments    int       `bson:"comments"`
	Version     int64     `bson:"version"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

type voteDocument struct {
	Issue     string    `bson:"issue"`
	User      string    `bson:"user"`
	CreatedAt time.Time `bson:"createdAt"`
}

func toIssueDocument(issue *models.Issue) issueDocument {
	doc := issueDocument{
		ID:          issue.ID.String(),
		Title:       issue.Title,
		Description: issue.Description,
		Category:    issue.Category,
		Status:      string(issue.Status),
		Location: geoPoint{
			Type:        "Point",
			Coordinates: issue.Location.Coordinates(),
			Address:     issue.Location.Address,
		},
		Images:    issue.Images,
		Votes:     issue.Votes,
		Comments:  issue.Comments,
		Version:   issue.Version,
		CreatedAt: issue.CreatedAt,
		UpdatedAt: issue.UpdatedAt,
	}
	if doc.Images == nil {
		doc.Images = []string{}
	}
	if issue.ReportedBy != nil {
		doc.ReportedBy = issue.ReportedBy.String()
	}
	return doc
}

func (d issueDocument) toModel() (*models.Issue, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("bad issue id %q: %w", d.ID, err)
	}
	status, err := models.ParseStatus(d.Status)
	if err != nil {
		return nil, err
	}
	issue := &models.Issue{
		ID:          id,
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Status:      status,
		Location: models.Location{
			Longitude: d.Location.Coordinates[0],
			Latitude:  d.Location.Coordinates[1],
			Address:   d.Location.Address,
		},
		Images:    d.Images,
		Votes:     d.Votes,
		Comments:  d.Comments,
		Version:   d.Version,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	if issue.Images == nil {
		issue.Images = []string{}
	}
	if d.ReportedBy != "" {
		reporter, err := uuid.Parse(d.ReportedBy)
		if err != nil {
			return nil, fmt.Errorf("bad reporter id %q: %w", d.ReportedBy, err)
		}
		issue.ReportedBy = &reporter
	}
	return issue, nil
}

type MongoIssueRepository struct {
	issues *mongo.Collection
	votes  *mongo.Collection
}

func NewMongoIssueRepository(db *mongo.Database) *MongoIssueRepository {
	return &MongoIssueRepository{
		issues: db.Collection(issuesCollection),
		votes:  db.Collection(votesCollection),
	}
}

// EnsureIndexes создает уникальный индекс (issue, user) для голосов и индекс по дате создания
func (r *MongoIssueRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.votes.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "issue", Value: 1}, {Key: "user", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create vote index: %w", err)
	}
	_, err = r.issues.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create issue index: %w", err)
	}
	return nil
}

func (r *MongoIssueRepository) List(ctx context.Context) ([]*models.Issue, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.issues.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer cursor.Close(ctx)

	issues := make([]*models.Issue, 0)
	for cursor.Next(ctx) {
		var doc issueDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode issue document: %w", err)
		}
		issue, err := doc.toModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert issue document: %w", err)
		}
		issues = append(issues, issue)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return issues, nil
}

func (r *MongoIssueRepository) Create(ctx context.Context, issue *models.Issue) error {
	if _, err := r.issues.InsertOne(ctx, toIssueDocument(issue)); err != nil {
		return fmt.Errorf("failed to create issue: %w", err)
	}
	return nil
}

func (r *MongoIssueRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	var doc issueDocument
	err := r.issues.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("issue with id %s: %w", id, service.ErrIssueNotFound)
		}
		return nil, fmt.Errorf("failed to get issue by id: %w", err)
	}
	return doc.toModel()
}

// UpdateStatus использует условие на version в фильтре для compare-and-swap
func (r *MongoIssueRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.IssueStatus, expectedVersion int64) (*models.Issue, error) {
	filter := bson.M{"_id": id.String()}
	if expectedVersion != 0 {
		filter["version"] = expectedVersion
	}
	update := bson.M{
		"$set": bson.M{"status": string(status), "updatedAt": time.Now().UTC()},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc issueDocument
	err := r.issues.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.toModel()
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update issue status: %w", err)
	}

	count, err := r.issues.CountDocuments(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to check issue existence: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("issue with id %s not found for update: %w", id, service.ErrIssueNotFound)
	}
	return nil, fmt.Errorf("issue with id %s, expected version %d: %w", id, expectedVersion, service.ErrVersionConflict)
}

// ToggleVote опирается на уникальный индекс голосов и атомарный $inc счетчика
func (r *MongoIssueRepository) ToggleVote(ctx context.Context, issueID, userID uuid.UUID) (bool, int, error) {
	if _, err := r.GetByID(ctx, issueID); err != nil {
		return false, 0, err
	}

	vote := bson.M{"issue": issueID.String(), "user": userID.String()}
	res, err := r.votes.DeleteOne(ctx, vote)
	if err != nil {
		return false, 0, fmt.Errorf("failed to remove vote: %w", err)
	}

	voted := res.DeletedCount == 0
	delta := -1
	if voted {
		_, err := r.votes.InsertOne(ctx, voteDocument{
			Issue:     issueID.String(),
			User:      userID.String(),
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			// Параллельный запрос того же пользователя уже поставил голос
			if mongo.IsDuplicateKeyError(err) {
				return false, 0, fmt.Errorf("vote already recorded: %w", service.ErrVersionConflict)
			}
			return false, 0, fmt.Errorf("failed to add vote: %w", err)
		}
		delta = 1
	}

	filter := bson.M{"_id": issueID.String()}
	if delta < 0 {
		filter["votes"] = bson.M{"$gt": 0}
	}
	update := bson.M{
		"$inc": bson.M{"votes": delta, "version": 1},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc issueDocument
	if err := r.issues.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return voted, 0, nil
		}
		return false, 0, fmt.Errorf("failed to update vote counter: %w", err)
	}
	return voted, doc.Votes, nil
}
