package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Andrandra1na/AMER-SMA/scoring"
	"github.com/Andrandra1na/AMER-SMA/store"
	"github.com/Andrandra1na/AMER-SMA/timeline"
)

// questionFile is the YAML layout of a question catalog.
type questionFile struct {
	Questions []struct {
		ID          int64  `yaml:"id"`
		Text        string `yaml:"text"`
		Category    string `yaml:"category"`
		IdealAnswer string `yaml:"ideal_answer"`
	} `yaml:"questions"`
}

// timelineFile is the YAML layout of a session's question timeline.
type timelineFile struct {
	Events []struct {
		QuestionID int64   `yaml:"question_id"`
		Timestamp  float64 `yaml:"timestamp"`
	} `yaml:"events"`
}

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Manage the question catalog",
}

var questionsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Insert or update questions from a YAML catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var qf questionFile
		if err := yaml.Unmarshal(data, &qf); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		for _, q := range qf.Questions {
			if q.ID <= 0 || q.Text == "" {
				return fmt.Errorf("question %d: id and text are required", q.ID)
			}
			if err := st.UpsertQuestion(cmd.Context(), store.Question{
				ID: q.ID, Text: q.Text, Category: q.Category, IdealAnswer: q.IdealAnswer,
			}); err != nil {
				return err
			}
		}
		log.WithField("questions", len(qf.Questions)).Info("question catalog imported")
		return nil
	},
}

var (
	sessCandidate string
	sessMedia     string
	sessTimeline  string
	sessProfile   string
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage interview sessions",
}

var sessionsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a recording and its question timeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessMedia == "" || sessTimeline == "" {
			return errors.New("--media and --timeline are required")
		}
		data, err := os.ReadFile(sessTimeline)
		if err != nil {
			return err
		}
		var tf timelineFile
		if err := yaml.Unmarshal(data, &tf); err != nil {
			return fmt.Errorf("parse %s: %w", sessTimeline, err)
		}
		events := make([]timeline.Event, 0, len(tf.Events))
		for _, e := range tf.Events {
			events = append(events, timeline.Event{QuestionID: e.QuestionID, Timestamp: e.Timestamp})
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		id, err := st.CreateSession(cmd.Context(), &store.Session{
			Candidate:     sessCandidate,
			MediaPath:     sessMedia,
			WeightProfile: sessProfile,
			Events:        events,
		})
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored weight profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		profiles, err := st.ListWeightProfiles(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tRELEVANCE\tCLARITY\tFLUENCY\tENGAGEMENT\tVALID")
		for _, p := range profiles {
			w, ok := scoring.ResolveWeights(p.WeightsJSON, scoring.DefaultWeights)
			fmt.Fprintf(tw, "%s\t%.0f\t%.0f\t%.0f\t%.0f\t%v\n", p.Name, w.Relevance, w.Clarity, w.Fluency, w.Engagement, ok)
		}
		return tw.Flush()
	},
}

func init() {
	questionsCmd.AddCommand(questionsImportCmd)

	sessionsCreateCmd.Flags().StringVar(&sessCandidate, "candidate", "", "candidate reference")
	sessionsCreateCmd.Flags().StringVar(&sessMedia, "media", "", "path to the recording")
	sessionsCreateCmd.Flags().StringVar(&sessTimeline, "timeline", "", "YAML file with the question events")
	sessionsCreateCmd.Flags().StringVar(&sessProfile, "profile", "", "weight profile name")
	sessionsCmd.AddCommand(sessionsCreateCmd)

	profilesCmd.AddCommand(profilesListCmd)
	rootCmd.AddCommand(questionsCmd, sessionsCmd)
}
